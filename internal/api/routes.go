package api

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/audio"
	"github.com/swaralabs/swara/internal/auth"
	"github.com/swaralabs/swara/internal/metrics"
	"github.com/swaralabs/swara/internal/websocket"
	"github.com/swaralabs/swara/usecase"
)

// uploadBodyLimit matches the live stream's per-session byte ceiling, so a
// voice note can never exceed what a recording could have buffered.
const uploadBodyLimit = "10M"

// voiceNoteSampleRate is the pipeline's canonical rate; uploads are resampled
// to it before processing.
const voiceNoteSampleRate = 16000

// Handlers carries the dependencies of the HTTP surface
type Handlers struct {
	hub           *websocket.Hub
	authenticator *auth.Authenticator
	processor     *audio.Processor
	pipeline      *usecase.ConversationService
	model         repositories.LargeLanguageModel
	speechEnabled bool
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewHandlers wires the HTTP handlers. model and m may be nil; requests that
// need the missing collaborator get the matching pipeline failure instead.
func NewHandlers(
	hub *websocket.Hub,
	authenticator *auth.Authenticator,
	processor *audio.Processor,
	pipeline *usecase.ConversationService,
	model repositories.LargeLanguageModel,
	speechEnabled bool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		hub:           hub,
		authenticator: authenticator,
		processor:     processor,
		pipeline:      pipeline,
		model:         model,
		speechEnabled: speechEnabled,
		metrics:       m,
		logger:        logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handlers, registry prometheus.Gatherer) {
	// Health check
	e.GET("/health", h.health)

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Session token issuance for browser clients
	v1.POST("/session/token", h.issueToken)

	// One-shot voice note uploads
	v1.POST("/voice-notes", h.voiceNote, middleware.BodyLimit(uploadBodyLimit))

	// WebSocket endpoint with session token validation
	e.GET("/ws", h.websocketWithAuth)

	// Prometheus scrape endpoint
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
}

func (h *Handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "swara-server",
		Time:    time.Now().Format(time.RFC3339),
	})
}

// issueToken issues a session token for a browser client. The body is
// optional; an anonymous client gets a token with no display name.
func (h *Handlers) issueToken(c echo.Context) error {
	var req TokenRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			h.logger.Warn("Failed to bind token request", zap.Error(err))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request format",
			})
		}
	}

	clientID := uuid.NewString()
	token, err := h.authenticator.GenerateClientToken(clientID, req.ClientName)
	if err != nil {
		h.logger.Error("Failed to generate session token",
			zap.String("client_id", clientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	h.logger.Info("Session token issued",
		zap.String("client_id", clientID),
		zap.String("client_name", req.ClientName))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ClientID:  clientID,
		ExpiresAt: time.Now().Add(h.authenticator.TokenTTL()),
	})
}

// websocketWithAuth validates the session token and hands the connection to
// the hub. Browsers cannot set headers on WebSocket dials, so the token also
// rides in the query string.
func (h *Handlers) websocketWithAuth(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		h.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "A session token is required in the token query parameter or Authorization header",
		})
	}

	claims, err := h.authenticator.ValidateToken(token)
	if err != nil {
		h.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}

	if claims.Role != "client" {
		h.logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only client session tokens may open WebSocket connections",
		})
	}

	h.logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID))

	return h.hub.HandleWebSocket(c)
}

// voiceNote runs one uploaded file through the conversation pipeline and
// waits for the terminal result. Decode problems are the client's fault;
// pipeline failures come back as 422 carrying the pipeline's own message.
func (h *Handlers) voiceNote(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "A file form field is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Could not read the uploaded file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Could not read the uploaded file",
		})
	}

	samples, info, err := audio.DecodeMediaFile(file.Filename, data)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedMedia) {
			return c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
				Error:   "unsupported_media",
				Message: "Supported formats are wav, mp3, ogg and aiff",
			})
		}
		h.logger.Warn("Failed to decode voice note",
			zap.String("filename", file.Filename),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "decode_failed",
			Message: "Could not decode the uploaded audio",
		})
	}
	if len(samples) == 0 {
		h.recordVoiceNote("failure")
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "processing_failed",
			Message: "No valid audio data",
		})
	}

	ctx := c.Request().Context()

	mono := audio.DownmixMono(samples, info.Channels)
	pcm := audio.Resample(mono, info.SampleRate, voiceNoteSampleRate)
	wavData := h.processor.FromFloatSamples(pcm, entities.WAVFormat())
	prepped := h.processor.Preprocess(ctx, wavData, entities.WAVFormat())

	var engine repositories.ChatEngine
	if h.model != nil {
		session, err := h.model.StartChat(ctx)
		if err != nil {
			h.logger.Error("Failed to start chat session for voice note", zap.Error(err))
		} else {
			engine = usecase.NewChatEngine(session, h.speechEnabled)
		}
	}

	noteID := "note-" + uuid.NewString()
	events, results := h.pipeline.ProcessChunks(noteID, [][]byte{prepped}, entities.WAVFormat(), engine)

	// Progress events only matter to streaming clients; drain and wait for
	// the terminal result.
	for range events {
	}
	result := <-results

	if !result.Success {
		h.recordVoiceNote("failure")
		h.logger.Warn("Voice note processing failed",
			zap.String("noteID", noteID),
			zap.String("reason", result.ErrorMessage))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "processing_failed",
			Message: result.ErrorMessage,
		})
	}

	h.recordVoiceNote("success")
	resp := VoiceNoteResponse{
		Transcript: result.Transcript,
		Response:   result.Response,
	}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) recordVoiceNote(result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordVoiceNote(result)
}
