package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/adapters/decoder"
	"github.com/swaralabs/swara/adapters/llm"
	"github.com/swaralabs/swara/adapters/stt"
	"github.com/swaralabs/swara/adapters/tts"
	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/api"
	"github.com/swaralabs/swara/internal/audio"
	"github.com/swaralabs/swara/internal/auth"
	"github.com/swaralabs/swara/internal/config"
	"github.com/swaralabs/swara/internal/metrics"
	"github.com/swaralabs/swara/internal/websocket"
	"github.com/swaralabs/swara/usecase"
)

const devJWTSecret = "dev-secret-do-not-use-in-production"

func main() {
	// .env is optional; in production the variables come from the platform
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = devJWTSecret
		logger.Warn("JWT_SECRET is not set, using the development secret")
	}
	authenticator, err := auth.NewAuthenticator(secret, 0)
	if err != nil {
		logger.Fatal("Failed to create authenticator", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics(registry)

	ctx := context.Background()

	speechToText, textToSpeech := buildSpeechAdapters(ctx, cfg, logger)
	speechEnabled := speechToText != nil && textToSpeech != nil
	model := buildLanguageModel(ctx, cfg, logger)

	ffmpeg := decoder.NewFFmpegDecoder(decoder.FFmpegConfig{
		Binary:  cfg.Decoder.FFmpegPath,
		Timeout: cfg.Decoder.GetTimeout(),
	}, logger)
	processor := audio.NewProcessor(logger, ffmpeg)
	archiver := audio.NewArchiver(cfg.Audio.ArchiveDir, processor, logger)

	sessions := usecase.NewAudioSessionService(logger)
	pipeline := usecase.NewConversationService(
		processor,
		speechToText,
		textToSpeech,
		sessions,
		cfg.Pipeline.Workers,
		cfg.Pipeline.GetRunTimeout(),
		m,
		logger,
	)

	hub := websocket.NewHub(sessions, pipeline, model, speechEnabled, archiver, m, cfg.Server.AllowedOrigins, logger)
	go hub.Run()

	cleanup := websocket.NewSessionCleanupService(hub, sessions, m, logger)
	cleanup.Start()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
	}))

	// Initialize API routes
	handlers := api.NewHandlers(hub, authenticator, processor, pipeline, model, speechEnabled, m, logger)
	api.InitRoutes(e, handlers, registry)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("speechEnabled", speechEnabled),
		zap.Int("pipelineWorkers", cfg.Pipeline.Workers),
		zap.Bool("archiveEnabled", archiver != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cleanup.Stop()
	pipeline.Shutdown()

	if closer, ok := speechToText.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close speech client", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func newLogger() *zap.Logger {
	if os.Getenv("ENV") == "development" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

// buildSpeechAdapters returns the recognition and synthesis engines, or nils
// for whichever the environment cannot support. The pipeline reports the
// missing capability to clients instead of the process failing at startup.
func buildSpeechAdapters(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, repositories.TextToSpeech) {
	if cfg.Speech.Mock {
		logger.Info("Using mock speech services")
		return stt.NewMockSpeechToText(logger), tts.NewMockTextToSpeech(logger)
	}

	var speechToText repositories.SpeechToText
	google, err := stt.NewGoogleSpeechToText(ctx, stt.GoogleConfig{Language: cfg.Speech.Language}, logger)
	if err != nil {
		logger.Warn("Speech recognition unavailable", zap.Error(err))
	} else {
		speechToText = google
	}

	var textToSpeech repositories.TextToSpeech
	eleven, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("Speech synthesis unavailable", zap.Error(err))
	} else {
		textToSpeech = eleven
	}

	return speechToText, textToSpeech
}

// buildLanguageModel returns the Gemini model, falling back to the mock when
// no API key is configured so development setups still get replies.
func buildLanguageModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) repositories.LargeLanguageModel {
	geminiConfig := llm.NewGeminiConfigFromEnv()
	if cfg.LLM.Model != "" {
		geminiConfig.Model = cfg.LLM.Model
	}

	model, err := llm.NewGeminiLLM(ctx, geminiConfig, logger)
	if err != nil {
		logger.Warn("Language model unavailable, falling back to mock", zap.Error(err))
		return llm.NewMockLLM()
	}
	return model
}
