package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/swaralabs/swara/domain/repositories"
)

var _ repositories.ChatSession = (*MockChatSession)(nil)

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"missing API key", GeminiConfig{}, true},
		{"valid minimal", GeminiConfig{APIKey: "test-key"}, false},
		{"temperature too high", GeminiConfig{APIKey: "k", Temperature: 1.5}, true},
		{"topP negative", GeminiConfig{APIKey: "k", TopP: -0.1}, true},
		{"topK negative", GeminiConfig{APIKey: "k", TopK: -1}, true},
		{"negative timeout", GeminiConfig{APIKey: "k", TimeoutSeconds: -5}, true},
		{"full valid", GeminiConfig{APIKey: "k", Temperature: 0.9, TopP: 0.5, TopK: 20, TimeoutSeconds: 10}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tc.config)
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestMockChatSessionEchoes(t *testing.T) {
	llm := NewMockLLM()
	session, err := llm.StartChat(context.Background())
	if err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}

	reply, err := session.SendMessage(context.Background(), "what is the weather")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !strings.Contains(reply, "what is the weather") {
		t.Errorf("Expected the reply to mention the message, got %q", reply)
	}

	second, err := session.SendMessage(context.Background(), "thanks")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply == second {
		t.Error("Expected replies to differ between turns")
	}
}
