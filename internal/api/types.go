package api

import "time"

// TokenRequest is the optional request payload for session token issuance
type TokenRequest struct {
	ClientName string `json:"client_name"`
}

// TokenResponse carries a freshly issued session token
type TokenResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VoiceNoteResponse is the terminal outcome of a voice note upload. Audio is
// base64-encoded WAV and absent when synthesis degraded to text only.
type VoiceNoteResponse struct {
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
	Audio      string `json:"audio,omitempty"`
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Time    string `json:"time"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
