package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/swaralabs/swara/domain/repositories"
)

// GeminiConfig holds configuration for the Gemini adapter.
// Required fields:
// - APIKey: Your Google AI API key
// Optional fields with defaults:
// - Model: The model to use (default: "gemini-2.0-flash")
// - SystemPrompt: The instruction prepended to every chat
// - Temperature: Sampling temperature between 0 and 1 (default: 0.7)
// - TopP: Nucleus sampling value between 0 and 1 (default: 0.95)
// - TopK: Top-k sampling value (default: 40)
// - MaxOutputTokens: Reply length cap (default: 256)
// - TimeoutSeconds: Per-message deadline (default: 30)
type GeminiConfig struct {
	APIKey          string
	Model           string
	SystemPrompt    string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	// Validate topP is in the valid range
	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	// Validate topK is positive if specified
	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	// Validate timeout is reasonable if specified
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiConfigFromEnv creates a config from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey:       os.Getenv("GEMINI_API_KEY"),
		Model:        os.Getenv("GEMINI_MODEL"),
		SystemPrompt: os.Getenv("GEMINI_SYSTEM_PROMPT"),
	}
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

// Ensure GeminiLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// StartChat creates a fresh chat session with empty history
func (g *GeminiLLM) StartChat(ctx context.Context) (repositories.ChatSession, error) {
	return NewGeminiChatSession(g.client, g.config, g.logger)
}
