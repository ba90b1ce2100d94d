package repositories

import "context"

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	// Synthesize renders text as WAV bytes
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
