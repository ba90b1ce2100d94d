package websocket

import (
	"encoding/base64"
	"time"
)

// Control message types clients send as JSON text frames. Audio itself
// arrives as binary frames, so the inbound schema carries only the type.
const (
	MessageTypeListeningStart = "listening_start"
	MessageTypeListeningEnd   = "listening_end"
	MessageTypePing           = "ping"
)

// Frame types the server sends back
const (
	FrameTypeSessionReady     = "session_ready"
	FrameTypeListeningStarted = "listening_started"
	FrameTypeListeningEnded   = "listening_ended"
	FrameTypeStatus           = "status"
	FrameTypeTranscript       = "transcript"
	FrameTypeResponse         = "response"
	FrameTypeRecordingLimit   = "recording_limit"
	FrameTypePong             = "pong"
	FrameTypeError            = "error"
)

// InboundMessage is the envelope of a client control frame
type InboundMessage struct {
	Type string `json:"type"`
}

// OutboundFrame is the single shape of every server frame. Unused fields are
// omitted, so each frame type carries only what it needs.
type OutboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// CreateSessionReadyFrame announces the server-assigned session id. It is
// the first frame on every connection.
func CreateSessionReadyFrame(sessionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeSessionReady,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateListeningStartedFrame acknowledges a listening_start message
func CreateListeningStartedFrame(sessionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeListeningStarted,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateListeningEndedFrame acknowledges a listening_end message before the
// pipeline's progress frames start arriving.
func CreateListeningEndedFrame(sessionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeListeningEnded,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateStatusFrame reports a pipeline stage transition
func CreateStatusFrame(sessionID, status string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeStatus,
		SessionID: sessionID,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateTranscriptFrame delivers recognized speech as soon as it exists,
// before the language model has answered.
func CreateTranscriptFrame(sessionID, text string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeTranscript,
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateResponseFrame is the terminal frame of a successful pipeline run.
// Audio is a complete WAV file, base64 encoded; it stays empty when speech
// synthesis degraded to a text-only answer.
func CreateResponseFrame(sessionID, text string, audio []byte) OutboundFrame {
	frame := OutboundFrame{
		Type:      FrameTypeResponse,
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if len(audio) > 0 {
		frame.Audio = base64.StdEncoding.EncodeToString(audio)
	}
	return frame
}

// CreateRecordingLimitFrame tells the client the session buffer is full and
// further audio is being discarded.
func CreateRecordingLimitFrame(sessionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeRecordingLimit,
		SessionID: sessionID,
		Message:   "Recording limit reached, additional audio is being discarded",
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreatePongFrame answers an application-level ping
func CreatePongFrame(sessionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypePong,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorFrame reports a failure to the client. The connection stays
// open; an error frame is terminal only for the pipeline run it concludes.
func CreateErrorFrame(sessionID, message string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameTypeError,
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
