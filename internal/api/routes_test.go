package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/adapters/llm"
	"github.com/swaralabs/swara/adapters/stt"
	"github.com/swaralabs/swara/adapters/tts"
	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/audio"
	"github.com/swaralabs/swara/internal/auth"
	"github.com/swaralabs/swara/internal/metrics"
	wshub "github.com/swaralabs/swara/internal/websocket"
	"github.com/swaralabs/swara/usecase"
)

const testJWTSecret = "test-secret"

func setupTestAPI(t testing.TB, model repositories.LargeLanguageModel) (*httptest.Server, *auth.Authenticator) {
	t.Helper()
	logger := zap.NewNop()

	authenticator, err := auth.NewAuthenticator(testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	sessions := usecase.NewAudioSessionService(logger)
	processor := audio.NewProcessor(logger, nil)
	pipeline := usecase.NewConversationService(
		processor,
		stt.NewMockSpeechToText(logger),
		tts.NewMockTextToSpeech(logger),
		sessions,
		1,
		30*time.Second,
		m,
		logger,
	)
	t.Cleanup(pipeline.Shutdown)

	hub := wshub.NewHub(sessions, pipeline, model, true, nil, m, []string{"*"}, logger)
	go hub.Run()

	handlers := NewHandlers(hub, authenticator, processor, pipeline, model, true, m, logger)

	e := echo.New()
	InitRoutes(e, handlers, registry)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server, authenticator
}

func issueTestToken(t *testing.T, server *httptest.Server) TokenResponse {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/v1/session/token", "application/json", nil)
	if err != nil {
		t.Fatalf("Token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("Failed to decode token response: %v", err)
	}
	return tok
}

// sineWAV builds a 16 kHz mono WAV clip for upload tests
func sineWAV(t *testing.T, numSamples int) []byte {
	t.Helper()
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.NewProcessor(zap.NewNop(), nil).FromFloatSamples(samples, entities.WAVFormat())
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Expected status ok, got %q", health.Status)
	}
	if health.Service != "swara-server" {
		t.Errorf("Expected service swara-server, got %q", health.Service)
	}
	if _, err := time.Parse(time.RFC3339, health.Time); err != nil {
		t.Errorf("Health time is not RFC3339: %v", err)
	}
}

func TestIssueTokenWithoutBody(t *testing.T) {
	server, authenticator := setupTestAPI(t, llm.NewMockLLM())

	tok := issueTestToken(t, server)
	if tok.Token == "" {
		t.Fatal("Expected a token, got empty string")
	}
	if tok.ClientID == "" {
		t.Error("Expected a client id, got empty string")
	}
	if !tok.ExpiresAt.After(time.Now()) {
		t.Errorf("Expected expiry in the future, got %v", tok.ExpiresAt)
	}

	claims, err := authenticator.ValidateToken(tok.Token)
	if err != nil {
		t.Fatalf("Issued token failed validation: %v", err)
	}
	if claims.Role != "client" {
		t.Errorf("Expected role client, got %q", claims.Role)
	}
	if claims.ClientID != tok.ClientID {
		t.Errorf("Expected client id %q in claims, got %q", tok.ClientID, claims.ClientID)
	}
}

func TestIssueTokenWithClientName(t *testing.T) {
	server, authenticator := setupTestAPI(t, llm.NewMockLLM())

	body := strings.NewReader(`{"client_name":"Ada"}`)
	resp, err := http.Post(server.URL+"/api/v1/session/token", "application/json", body)
	if err != nil {
		t.Fatalf("Token request failed: %v", err)
	}
	defer resp.Body.Close()

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("Failed to decode token response: %v", err)
	}

	claims, err := authenticator.ValidateToken(tok.Token)
	if err != nil {
		t.Fatalf("Issued token failed validation: %v", err)
	}
	if claims.Name != "Ada" {
		t.Errorf("Expected name Ada in claims, got %q", claims.Name)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "missing_token" {
		t.Errorf("Expected error missing_token, got %q", errResp.Error)
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	resp, err := http.Get(server.URL + "/ws?token=not-a-token")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "invalid_token" {
		t.Errorf("Expected error invalid_token, got %q", errResp.Error)
	}
}

func TestWebSocketRejectsNonClientRole(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	claims := &auth.Claims{
		ClientID: "svc-1",
		Role:     "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	resp, err := http.Get(server.URL + "/ws?token=" + forged)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "invalid_role" {
		t.Errorf("Expected error invalid_role, got %q", errResp.Error)
	}
}

func TestWebSocketWithQueryToken(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())
	tok := issueTestToken(t, server)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tok.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wshub.OutboundFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if frame.Type != wshub.FrameTypeSessionReady {
		t.Errorf("Expected session_ready frame, got %q", frame.Type)
	}
	if frame.SessionID == "" {
		t.Error("Expected a session id in the ready frame")
	}
}

func TestWebSocketWithBearerToken(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())
	tok := issueTestToken(t, server)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + tok.Token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wshub.OutboundFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if frame.Type != wshub.FrameTypeSessionReady {
		t.Errorf("Expected session_ready frame, got %q", frame.Type)
	}
}

func TestVoiceNoteUpload(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "note.wav")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := fw.Write(sineWAV(t, 400)); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(server.URL+"/api/v1/voice-notes", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var note VoiceNoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if note.Transcript != "Hi" {
		t.Errorf("Expected transcript Hi, got %q", note.Transcript)
	}
	if !strings.Contains(note.Response, "Hi") {
		t.Errorf("Expected response to echo the transcript, got %q", note.Response)
	}
	if note.Audio == "" {
		t.Fatal("Expected synthesized audio in the response")
	}

	audioData, err := base64.StdEncoding.DecodeString(note.Audio)
	if err != nil {
		t.Fatalf("Response audio is not valid base64: %v", err)
	}
	if len(audioData) <= 44 || string(audioData[:4]) != "RIFF" {
		t.Errorf("Expected WAV reply audio, got %d bytes", len(audioData))
	}
}

func TestVoiceNoteUnsupportedExtension(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "note.txt")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write([]byte("just some text"))
	mw.Close()

	resp, err := http.Post(server.URL+"/api/v1/voice-notes", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "unsupported_media" {
		t.Errorf("Expected error unsupported_media, got %q", errResp.Error)
	}
}

func TestVoiceNoteCorruptFile(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "note.wav")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write([]byte("not a wav at all"))
	mw.Close()

	resp, err := http.Post(server.URL+"/api/v1/voice-notes", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "decode_failed" {
		t.Errorf("Expected error decode_failed, got %q", errResp.Error)
	}
}

func TestVoiceNoteMissingFile(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	resp, err := http.Post(server.URL+"/api/v1/voice-notes", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "missing_file" {
		t.Errorf("Expected error missing_file, got %q", errResp.Error)
	}
}

func TestVoiceNoteWithoutModel(t *testing.T) {
	server, _ := setupTestAPI(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "note.wav")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write(sineWAV(t, 400))
	mw.Close()

	resp, err := http.Post(server.URL+"/api/v1/voice-notes", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Message != "AI service not available" {
		t.Errorf("Expected AI service not available, got %q", errResp.Message)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestAPI(t, llm.NewMockLLM())

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics body: %v", err)
	}
	if !strings.Contains(string(body), "swara_sessions_active") {
		t.Error("Expected swara_sessions_active in metrics output")
	}
}
