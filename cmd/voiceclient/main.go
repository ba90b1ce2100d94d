package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

// TokenResponse mirrors the session token endpoint payload
type TokenResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	audioPath := flag.String("file", "sample_audio.wav", "audio file to stream")
	chunkSize := flag.Int("chunk", 1024, "bytes per binary frame")
	outDir := flag.String("out", "audio_responses", "directory for reply audio")
	flag.Parse()

	// First, fetch a session token
	token, clientID, err := fetchSessionToken(*serverURL)
	if err != nil {
		log.Fatal("Failed to fetch session token:", err)
	}
	log.Printf("Issued session token for client: %s", clientID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	wsURL, err := websocketURL(*serverURL)
	if err != nil {
		log.Fatal("Invalid server URL:", err)
	}
	log.Printf("connecting to %s", wsURL)

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(wsURL, headers)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Start a goroutine to read frames from the server
	go handleIncomingFrames(c, *outDir, done)

	streamRecording(c, *audioPath, *chunkSize)

	// Wait for the conversation to finish or an interrupt
	select {
	case <-done:
		return
	case <-interrupt:
		log.Println("interrupt")
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return
	}
}

func fetchSessionToken(base string) (string, string, error) {
	resp, err := http.Post(base+"/api/v1/session/token", "application/json", nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token request failed: %s", string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", "", err
	}

	return tokenResp.Token, tokenResp.ClientID, nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

func streamRecording(c *websocket.Conn, path string, chunkSize int) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Error reading audio file: %v", err)
		return
	}
	log.Printf("📁 Read audio file: %s (%d bytes)", path, len(data))

	if err := sendControl(c, "listening_start"); err != nil {
		log.Printf("Error starting recording: %v", err)
		return
	}
	time.Sleep(200 * time.Millisecond)

	totalChunks := (len(data) + chunkSize - 1) / chunkSize
	log.Printf("📤 Sending %d audio chunks (chunk size: %d bytes)", totalChunks, chunkSize)
	start := time.Now()

	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}

		if err := c.WriteMessage(websocket.BinaryMessage, data[i:end]); err != nil {
			log.Printf("Error sending audio chunk: %v", err)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Printf("📤 Finished sending audio in %v", time.Since(start))

	if err := sendControl(c, "listening_end"); err != nil {
		log.Printf("Error ending recording: %v", err)
		return
	}
	log.Printf("✅ Recording sent! Waiting for the assistant...")
}

func sendControl(c *websocket.Conn, msgType string) error {
	return c.WriteJSON(map[string]string{"type": msgType})
}

func handleIncomingFrames(c *websocket.Conn, outDir string, done chan struct{}) {
	defer close(done)

	for {
		var frame map[string]interface{}
		if err := c.ReadJSON(&frame); err != nil {
			log.Println("read:", err)
			return
		}

		frameType, _ := frame["type"].(string)
		switch frameType {
		case "session_ready":
			log.Printf("✅ Session ready: %v", frame["session_id"])
		case "listening_started":
			log.Printf("🎙️ Server is listening")
		case "listening_ended":
			log.Printf("🛑 Recording closed, processing...")
		case "status":
			log.Printf("⏳ Status: %v", frame["status"])
		case "transcript":
			log.Printf("📝 You said: %v", frame["text"])
		case "recording_limit":
			log.Printf("⚠️ %v", frame["message"])
		case "response":
			log.Printf("💬 Assistant: %v", frame["text"])
			if audioB64, ok := frame["audio"].(string); ok && audioB64 != "" {
				saveReplyAudio(outDir, audioB64)
			}
			return
		case "error":
			log.Printf("❌ Error: %v", frame["message"])
			return
		case "pong":
			log.Printf("🏓 Pong")
		default:
			log.Printf("Received unknown frame type: %s", frameType)
		}
	}
}

func saveReplyAudio(outDir, audioB64 string) {
	data, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		log.Printf("Error decoding reply audio: %v", err)
		return
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Printf("Error creating output directory: %v", err)
		return
	}

	path := filepath.Join(outDir, fmt.Sprintf("%d.wav", time.Now().Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Error writing reply audio: %v", err)
		return
	}
	log.Printf("📁 Saved reply audio: %s (%d bytes)", path, len(data))
}
