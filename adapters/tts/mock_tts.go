package tts

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/audio"
)

const (
	mockSampleRate  = 16000
	mockToneHz      = 440.0
	mockMsPerChar   = 50
	mockMaxDuration = 3000 // milliseconds
)

// MockTextToSpeech is a placeholder synthesizer for development without an
// Eleven Labs key. It produces an audible tone whose length tracks the text,
// so the browser playback path can be exercised end to end.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTextToSpeech{
		logger: logger,
	}
}

// Synthesize returns a WAV tone roughly as long as the text would take to say
func (m *MockTextToSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	durationMs := len(text) * mockMsPerChar
	if durationMs > mockMaxDuration {
		durationMs = mockMaxDuration
	}

	sampleCount := mockSampleRate * durationMs / 1000
	pcm := make([]byte, sampleCount*2)
	for i := 0; i < sampleCount; i++ {
		v := 0.2 * math.Sin(2*math.Pi*mockToneHz*float64(i)/mockSampleRate)
		sample := int16(v * 32767.0)
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}

	m.logger.Info("Generated mock speech",
		zap.Int("textChars", len(text)),
		zap.Int("durationMs", durationMs))

	return audio.PCMToWAV(pcm, mockSampleRate, 1, 16), nil
}
