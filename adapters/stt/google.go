package stt

import (
	"context"
	"fmt"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
)

// GoogleConfig holds settings for Google Cloud Speech-to-Text. Credentials
// are picked up from the environment (GOOGLE_APPLICATION_CREDENTIALS), the
// same way every other Google client library finds them.
type GoogleConfig struct {
	// Language is the BCP-47 recognition language code
	Language string
}

// NewGoogleConfigFromEnv creates a config from environment variables
func NewGoogleConfigFromEnv() GoogleConfig {
	return GoogleConfig{
		Language: os.Getenv("GOOGLE_SPEECH_LANGUAGE"),
	}
}

// GoogleSpeechToText transcribes complete utterances with the synchronous
// Recognize API. The client is dialed once and reused across calls.
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	logger   *zap.Logger
}

// NewGoogleSpeechToText dials the Speech API and returns a ready adapter.
// It fails when no credentials are available, which callers treat as
// "speech disabled" rather than a fatal error.
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	if config.Language == "" {
		config.Language = "en-US"
		logger.Info("Using default recognition language", zap.String("language", config.Language))
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{
		client:   client,
		language: config.Language,
		logger:   logger,
	}, nil
}

// Transcribe recognizes one combined recording and returns the best final
// transcript. An empty string with a nil error means the recognizer heard
// nothing it could turn into words.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, data []byte, format entities.AudioFormat) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        recognitionEncoding(format.Container),
			SampleRateHertz: int32(format.SampleRateHz),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize audio: %w", err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript += result.Alternatives[0].Transcript
		}
	}

	g.logger.Debug("Transcription finished",
		zap.Int("audioBytes", len(data)),
		zap.String("container", string(format.Container)),
		zap.Int("transcriptChars", len(transcript)))

	return transcript, nil
}

// Close releases the underlying API client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// recognitionEncoding maps a detected container onto the Speech API enum.
// WAV and raw PCM both carry 16-bit little-endian samples, so they share
// LINEAR16. Anything unrecognized is treated as headerless PCM.
func recognitionEncoding(container entities.Container) speechpb.RecognitionConfig_AudioEncoding {
	switch container {
	case entities.ContainerWebMOpus:
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
