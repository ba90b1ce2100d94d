package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
)

// MockSpeechToText is a placeholder recognizer for development without
// Google credentials. The transcript only depends on how much audio came in.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// Transcribe returns a canned transcript scaled to the recording size
func (s *MockSpeechToText) Transcribe(ctx context.Context, data []byte, format entities.AudioFormat) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(data)),
		zap.String("container", string(format.Container)),
		zap.Int("sampleRate", format.SampleRateHz))

	if len(data) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	switch {
	case len(data) > 10000:
		return "Hello there, I have a lot to tell you about my day today.", nil
	case len(data) > 5000:
		return "Thank you for listening to me.", nil
	case len(data) > 1000:
		return "Hello, can you hear me?", nil
	default:
		return "Hi", nil
	}
}
