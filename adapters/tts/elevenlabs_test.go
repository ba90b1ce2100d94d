package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsTTS(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}

	if tts.sampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", tts.sampleRate)
	}
}

func TestValidateRejectsNonPCMFormat(t *testing.T) {
	err := ValidateElevenLabsConfig(ElevenLabsConfig{
		APIKey:       "test-api-key",
		OutputFormat: "mp3_44100_128",
	})
	if err == nil {
		t.Error("Expected error for a non-pcm output format")
	}
}

func TestPCMSampleRate(t *testing.T) {
	tests := []struct {
		format  string
		want    int
		wantErr bool
	}{
		{"pcm_16000", 16000, false},
		{"pcm_44100", 44100, false},
		{"mp3_44100_128", 0, true},
		{"pcm_", 0, true},
		{"pcm_abc", 0, true},
	}

	for _, tc := range tests {
		got, err := pcmSampleRate(tc.format)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Expected error for %q", tc.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", tc.format, err)
		}
		if got != tc.want {
			t.Errorf("Expected %d for %q, got %d", tc.want, tc.format, got)
		}
	}
}

func TestElevenLabsTTS_SetVoiceSettings(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	tts.SetVoiceSettings(0.8, 0.9)

	if tts.stability != 0.8 {
		t.Errorf("Expected stability 0.8, got %f", tts.stability)
	}

	if tts.clarity != 0.9 {
		t.Errorf("Expected clarity 0.9, got %f", tts.clarity)
	}
}

func TestElevenLabsTTS_SetVoiceID(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	newVoiceID := "new-voice-id"
	tts.SetVoiceID(newVoiceID)

	if tts.voiceID != newVoiceID {
		t.Errorf("Expected voice ID '%s', got '%s'", newVoiceID, tts.voiceID)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	if _, err = tts.Synthesize(ctx, ""); err == nil {
		t.Error("Expected error for empty text")
	}

	if _, err = tts.Synthesize(ctx, "   "); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestSynthesizeWrapsPCMIntoWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-api-key" {
			t.Errorf("Expected API key header, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "audio/pcm" {
			t.Errorf("Expected audio/pcm accept header, got %q", got)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("Expected pcm_16000 output format, got %q", got)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	wav, err := tts.Synthesize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Fatalf("Expected %d bytes of WAV, got %d", 44+len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("Expected a RIFF/WAVE header")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("Expected 16000 Hz in the header, got %d", rate)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("Expected the PCM payload to pass through unchanged")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("Expected error for a non-200 response")
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestSynthesizeIntegration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	logger := zap.NewNop()

	config := NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wav, err := tts.Synthesize(ctx, "Hello, this is an integration test.")
	if err != nil {
		t.Fatalf("Failed to synthesize speech: %v", err)
	}

	if len(wav) <= 44 {
		t.Errorf("Expected audible WAV output, got %d bytes", len(wav))
	}

	t.Logf("Integration test completed: received %d WAV bytes", len(wav))
}
