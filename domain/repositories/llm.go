package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// StartChat opens a fresh conversation with empty history
	StartChat(ctx context.Context) (ChatSession, error)
}

// ChatSession represents an ongoing conversation; implementations carry the
// history across calls
type ChatSession interface {
	SendMessage(ctx context.Context, message string) (string, error)
}

// ChatEngine is what one pipeline run talks to: a started chat session plus
// the deployment's speech capability. SpeechEnabled is false when either the
// recognition or the synthesis engine is missing from the environment.
type ChatEngine interface {
	Chat(ctx context.Context, message string) (string, error)
	SpeechEnabled() bool
}
