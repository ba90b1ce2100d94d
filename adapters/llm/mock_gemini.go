package llm

import (
	"context"
	"fmt"

	"github.com/swaralabs/swara/domain/repositories"
)

// MockLLM is a placeholder language model for development without an API key
type MockLLM struct{}

// NewMockLLM creates a new mock language model
func NewMockLLM() repositories.LargeLanguageModel {
	return &MockLLM{}
}

// StartChat implements repositories.LargeLanguageModel
func (m *MockLLM) StartChat(ctx context.Context) (repositories.ChatSession, error) {
	return &MockChatSession{}, nil
}

// MockChatSession implements repositories.ChatSession
type MockChatSession struct {
	turns int
}

// SendMessage echoes the message back so the full round trip is visible
func (m *MockChatSession) SendMessage(ctx context.Context, message string) (string, error) {
	m.turns++

	if message == "" {
		return "Hello! I'm Swara. What would you like to talk about?", nil
	}
	return fmt.Sprintf("I heard you say '%s'. This is reply number %d from the mock model.", message, m.turns), nil
}
