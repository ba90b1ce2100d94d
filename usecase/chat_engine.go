package usecase

import (
	"context"

	"github.com/swaralabs/swara/domain/repositories"
)

// chatEngine couples a started chat session with the deployment's speech
// capability. The flag is decided once at wiring time: true only when both
// the recognition and the synthesis engines are configured.
type chatEngine struct {
	session       repositories.ChatSession
	speechEnabled bool
}

// NewChatEngine wraps a chat session as the pipeline's engine collaborator
func NewChatEngine(session repositories.ChatSession, speechEnabled bool) repositories.ChatEngine {
	return &chatEngine{
		session:       session,
		speechEnabled: speechEnabled,
	}
}

func (e *chatEngine) Chat(ctx context.Context, message string) (string, error) {
	return e.session.SendMessage(ctx, message)
}

func (e *chatEngine) SpeechEnabled() bool {
	return e.speechEnabled
}
