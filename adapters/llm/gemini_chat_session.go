package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/swaralabs/swara/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 256
	defaultTimeoutSeconds = 30

	// Replies are read aloud, so the model is steered towards brevity
	defaultSystemPrompt = "You are Swara, a friendly voice assistant. " +
		"Your replies are spoken aloud to the user, so keep them short, " +
		"conversational, and free of markup or lists."

	sendAttempts = 3
)

// defaultSafetySettings are applied to every generation request
var defaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// GeminiChatSession implements the ChatSession interface. One session holds
// one conversation's history; it is not safe for concurrent use, which fits
// the one-session-per-connection wiring.
type GeminiChatSession struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeoutSeconds  int
	systemPrompt    string
	history         []*genai.Content
}

// Ensure GeminiChatSession implements the ChatSession interface
var _ repositories.ChatSession = (*GeminiChatSession)(nil)

// NewGeminiChatSession creates a new chat session with empty history
func NewGeminiChatSession(client *genai.Client, config GeminiConfig, logger *zap.Logger) (*GeminiChatSession, error) {
	// Validate required configuration
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	// Apply defaults where needed
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
		logger.Info("Using default topP", zap.Float32("topP", topP))
	}

	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
		logger.Info("Using default topK", zap.Float32("topK", topK))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &GeminiChatSession{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeoutSeconds:  timeoutSeconds,
		systemPrompt:    systemPrompt,
	}, nil
}

// SendMessage sends a message and returns the reply, updating the history.
// A blank reply is reported as an error so callers never speak silence.
func (s *GeminiChatSession) SendMessage(ctx context.Context, message string) (string, error) {
	// Prepare contents for API call (system prompt + history + current message)
	var contents []*genai.Content

	// Add system instruction as the first message
	contents = append(contents, genai.NewContentFromText(s.systemPrompt, genai.RoleUser))

	// Add existing history (already in Gemini format)
	contents = append(contents, s.history...)

	// Add the current user message to the contents for this API call
	userContent := genai.NewContentFromText(message, genai.RoleUser)
	contents = append(contents, userContent)

	// Configure settings using the session's configuration
	config := &genai.GenerateContentConfig{
		SafetySettings:  defaultSafetySettings,
		Temperature:     genai.Ptr(s.temperature),
		TopP:            genai.Ptr(s.topP),
		TopK:            genai.Ptr(s.topK),
		MaxOutputTokens: int32(s.maxOutputTokens),
	}

	// Add timeout to context if not already set
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSeconds)*time.Second)
	defer cancel()

	// Add retry logic
	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		response, err = s.client.Models.GenerateContent(ctx, s.model, contents, config)
		if err == nil {
			break
		}

		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < sendAttempts-1 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to generate content after %d attempts: %w", sendAttempts, err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	// Extract text from the response
	var responseText string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}

	if strings.TrimSpace(responseText) == "" {
		return "", fmt.Errorf("empty response from model")
	}

	// Add both messages to history
	responseContent := genai.NewContentFromText(responseText, genai.RoleModel)
	s.history = append(s.history, userContent, responseContent)

	s.logger.Info("Chat session message processed",
		zap.String("user_message", message[:min(50, len(message))]),
		zap.String("response_preview", responseText[:min(50, len(responseText))]),
		zap.Int("history_length", len(s.history)))

	return responseText, nil
}

// HistoryLength reports how many turns the session has accumulated
func (s *GeminiChatSession) HistoryLength() int {
	return len(s.history)
}
