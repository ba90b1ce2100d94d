package repositories

import (
	"context"

	"github.com/swaralabs/swara/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts one finished recording to text. A blank string
	// with a nil error means the engine heard nothing intelligible.
	Transcribe(ctx context.Context, data []byte, format entities.AudioFormat) (string, error)
}
