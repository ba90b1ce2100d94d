package websocket

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func TestCreateResponseFrame(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46, 0x01, 0x02}
	frame := CreateResponseFrame("session-1", "Hello there", audio)

	if frame.Type != FrameTypeResponse {
		t.Errorf("Expected type %s, got %s", FrameTypeResponse, frame.Type)
	}
	if frame.Text != "Hello there" {
		t.Errorf("Expected text 'Hello there', got %q", frame.Text)
	}

	decoded, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		t.Fatalf("Audio is not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, audio) {
		t.Errorf("Expected audio %v, got %v", audio, decoded)
	}
}

func TestCreateResponseFrameWithoutAudio(t *testing.T) {
	frame := CreateResponseFrame("session-1", "Text only answer", nil)

	if frame.Audio != "" {
		t.Errorf("Expected empty audio for a text-only answer, got %q", frame.Audio)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal frame: %v", err)
	}
	if _, exists := fields["audio"]; exists {
		t.Error("Expected audio field to be omitted when empty")
	}
}

func TestCreateErrorFrame(t *testing.T) {
	frame := CreateErrorFrame("session-1", "Could not understand speech")

	if frame.Type != FrameTypeError {
		t.Errorf("Expected type %s, got %s", FrameTypeError, frame.Type)
	}
	if frame.Message != "Could not understand speech" {
		t.Errorf("Expected message to carry the failure, got %q", frame.Message)
	}
	if frame.SessionID != "session-1" {
		t.Errorf("Expected session id 'session-1', got %q", frame.SessionID)
	}

	// Verify timestamp is recent
	timestamp, err := time.Parse(time.RFC3339, frame.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > time.Second {
		t.Errorf("Timestamp is not recent: %s", frame.Timestamp)
	}
}

func TestFrameSerializationOmitsUnusedFields(t *testing.T) {
	frame := CreateStatusFrame("session-1", "stt_processing")

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal frame: %v", err)
	}

	for _, key := range []string{"type", "session_id", "status", "timestamp"} {
		if _, exists := fields[key]; !exists {
			t.Errorf("Expected field %q in status frame", key)
		}
	}
	for _, key := range []string{"text", "audio", "message"} {
		if _, exists := fields[key]; exists {
			t.Errorf("Expected field %q to be omitted from status frame", key)
		}
	}
}

func TestFrameConstructorsSetTypes(t *testing.T) {
	tests := []struct {
		name  string
		frame OutboundFrame
		want  string
	}{
		{"session ready", CreateSessionReadyFrame("s"), FrameTypeSessionReady},
		{"listening started", CreateListeningStartedFrame("s"), FrameTypeListeningStarted},
		{"listening ended", CreateListeningEndedFrame("s"), FrameTypeListeningEnded},
		{"status", CreateStatusFrame("s", "llm_processing"), FrameTypeStatus},
		{"transcript", CreateTranscriptFrame("s", "hi"), FrameTypeTranscript},
		{"response", CreateResponseFrame("s", "hi", nil), FrameTypeResponse},
		{"recording limit", CreateRecordingLimitFrame("s"), FrameTypeRecordingLimit},
		{"pong", CreatePongFrame("s"), FrameTypePong},
		{"error", CreateErrorFrame("s", "boom"), FrameTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.frame.Type != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, tt.frame.Type)
			}
			if tt.frame.SessionID != "s" {
				t.Errorf("Expected session id 's', got %q", tt.frame.SessionID)
			}
			if tt.frame.Timestamp == "" {
				t.Error("Expected a timestamp")
			}
		})
	}
}

func TestCreateRecordingLimitFrameCarriesNotice(t *testing.T) {
	frame := CreateRecordingLimitFrame("session-1")
	if frame.Message == "" {
		t.Error("Expected the limit frame to explain itself")
	}
}

func TestInboundMessageParsing(t *testing.T) {
	var msg InboundMessage
	if err := json.Unmarshal([]byte(`{"type":"listening_start"}`), &msg); err != nil {
		t.Fatalf("Failed to parse control message: %v", err)
	}
	if msg.Type != MessageTypeListeningStart {
		t.Errorf("Expected type %s, got %s", MessageTypeListeningStart, msg.Type)
	}
}
