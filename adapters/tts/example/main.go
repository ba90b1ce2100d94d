package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/joho/godotenv"
	"github.com/swaralabs/swara/adapters/tts"
)

func main() {
	godotenv.Load()

	// Create logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Check if API key is set
	if os.Getenv("ELEVEN_LABS_API_KEY") == "" {
		logger.Fatal("ELEVEN_LABS_API_KEY environment variable is required")
	}

	// Create TTS service
	ttsService, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to create TTS service", zap.Error(err))
	}

	text := "Hello! This is a demonstration of the Eleven Labs text to speech integration."
	if len(os.Args) > 1 {
		text = os.Args[1]
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Converting text to speech", zap.String("text", text))

	wavData, err := ttsService.Synthesize(ctx, text)
	if err != nil {
		logger.Fatal("Failed to convert text to speech", zap.Error(err))
	}

	outputFile := "example_output.wav"
	if err := os.WriteFile(outputFile, wavData, 0644); err != nil {
		logger.Fatal("Failed to write output file", zap.Error(err))
	}

	logger.Info("Audio conversion completed",
		zap.Int("totalBytes", len(wavData)),
		zap.String("outputFile", outputFile))

	fmt.Printf("✅ Audio successfully saved to %s (%d bytes)\n", outputFile, len(wavData))

	// Play the audio file automatically
	if os.Getenv("NO_AUTOPLAY") != "true" {
		logger.Info("Playing audio file automatically...")
		if err := playAudioFile(outputFile, logger); err != nil {
			logger.Warn("Failed to play audio automatically", zap.Error(err))
			fmt.Printf("⚠️  Could not auto-play audio. Try: ffplay -nodisp -autoexit %s\n", outputFile)
		} else {
			fmt.Printf("🎵 Audio played successfully!\n")
		}
	}
}

// playAudioFile attempts to play a WAV file using available system tools.
// The adapter wraps its output in a WAV container, so stock players work
// without format flags.
func playAudioFile(filename string, logger *zap.Logger) error {
	players := []string{"play", "ffplay", "aplay", "afplay"}

	for _, player := range players {
		if _, err := exec.LookPath(player); err != nil {
			continue
		}

		args := []string{filename}
		if player == "ffplay" {
			args = []string{"-nodisp", "-autoexit", filename}
		}

		logger.Info("Attempting to play audio", zap.String("player", player))
		if err := exec.Command(player, args...).Run(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no suitable audio player found")
}
