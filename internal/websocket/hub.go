package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/audio"
	"github.com/swaralabs/swara/internal/metrics"
	"github.com/swaralabs/swara/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// Per-client buffer of outbound frames.
	sendBufferSize = 64

	// Upper bound on one archive write.
	archiveTimeout = 30 * time.Second
)

// Hub maintains the set of active clients and owns the collaborators a
// connection needs: recording state, the processing pipeline, the language
// model and the optional recording archiver.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	sessions      *usecase.AudioSessionService
	pipeline      *usecase.ConversationService
	llm           repositories.LargeLanguageModel
	speechEnabled bool
	archiver      *audio.Archiver
	metrics       *metrics.Metrics

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub. llm may be nil when no language model
// is configured; every run then fails with the service-unavailable message
// instead of refusing the connection. archiver and m may also be nil, which
// disables archiving and metrics.
func NewHub(
	sessions *usecase.AudioSessionService,
	pipeline *usecase.ConversationService,
	llm repositories.LargeLanguageModel,
	speechEnabled bool,
	archiver *audio.Archiver,
	m *metrics.Metrics,
	allowedOrigins []string,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		sessions:      sessions,
		pipeline:      pipeline,
		llm:           llm,
		speechEnabled: speechEnabled,
		archiver:      archiver,
		metrics:       m,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins, logger),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// originChecker builds the upgrader's origin policy from the configured
// allow list. "*" admits every origin. Requests without an Origin header
// (non-browser clients) always pass.
func originChecker(allowed []string, logger *zap.Logger) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" || set[origin] {
			return true
		}
		logger.Warn("Rejected WebSocket origin", zap.String("origin", origin))
		return false
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordConnection()
				h.metrics.SetActiveSessions(count)
			}
			h.logger.Info("Client registered",
				zap.String("sessionID", client.sessionID),
				zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.sessions.RemoveSession(client.sessionID)
			if h.metrics != nil {
				h.metrics.SetActiveSessions(count)
			}
			h.logger.Info("Client unregistered",
				zap.String("sessionID", client.sessionID),
				zap.Int("clients", count))
		}
	}
}

// ClientCount reports how many clients are connected
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// liveSessionIDs snapshots the session ids of all connected clients
func (h *Hub) liveSessionIDs() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make(map[string]bool, len(h.clients))
	for client := range h.clients {
		ids[client.sessionID] = true
	}
	return ids
}

// archiveRecording hands a finished utterance to the archiver, when one is
// configured. Archiving runs off the read pump; failures are logged and
// never reach the client.
func (h *Hub) archiveRecording(sessionID string, chunks [][]byte, format entities.AudioFormat) {
	if h.archiver == nil || len(chunks) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if _, err := h.archiver.ArchiveChunks(ctx, sessionID, chunks, format); err != nil {
			h.logger.Warn("Failed to archive recording",
				zap.String("sessionID", sessionID),
				zap.Error(err))
		}
	}()
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan OutboundFrame

	// Closed by the hub on unregister so the write pump exits even when
	// buffered frames remain.
	done chan struct{}

	// Server-assigned id, announced in the session_ready frame
	sessionID string

	// Conversation engine for this connection, nil without a language model
	engine repositories.ChatEngine

	// Whether the current recording already produced a limit notice.
	// Touched only by the read pump.
	limitNotified bool

	logger *zap.Logger
}

// HandleWebSocket upgrades the request and starts a session. Token
// validation has already happened at the route.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	sessionID := uuid.NewString()
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan OutboundFrame, sendBufferSize),
		done:      make(chan struct{}),
		sessionID: sessionID,
		logger:    h.logger.With(zap.String("sessionID", sessionID)),
	}

	if h.llm != nil {
		chatSession, err := h.llm.StartChat(c.Request().Context())
		if err != nil {
			client.logger.Error("Failed to start chat session", zap.Error(err))
		} else {
			client.engine = usecase.NewChatEngine(chatSession, h.speechEnabled)
		}
	}

	// Register before initializing session state so a session id known to
	// the session service always belongs to a registered client.
	client.hub.register <- client
	h.sessions.InitializeSession(sessionID)
	client.enqueue(CreateSessionReadyFrame(sessionID))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// enqueue hands a frame to the write pump without ever blocking the read
// pump. Frames are dropped when the client cannot keep up or is gone.
func (c *Client) enqueue(frame OutboundFrame) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("Send buffer full, dropping frame", zap.String("type", frame.Type))
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read failed", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processControlMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("Failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processControlMessage dispatches one JSON control frame
func (c *Client) processControlMessage(message []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("Failed to parse control message", zap.Error(err))
		c.enqueue(CreateErrorFrame(c.sessionID, "Invalid message format"))
		return
	}

	switch msg.Type {
	case MessageTypeListeningStart:
		c.handleListeningStart()
	case MessageTypeListeningEnd:
		c.handleListeningEnd()
	case MessageTypePing:
		c.enqueue(CreatePongFrame(c.sessionID))
	default:
		c.logger.Debug("Unknown message type", zap.String("type", msg.Type))
		c.enqueue(CreateErrorFrame(c.sessionID, "Unknown message type: "+msg.Type))
	}
}

// processAudioFrame buffers one binary frame into the session. Frames
// arriving outside a recording are dropped silently; the browser keeps
// streaming for a moment after listening_end.
func (c *Client) processAudioFrame(data []byte) {
	if !c.hub.sessions.IsRecording(c.sessionID) {
		c.logger.Debug("Dropping audio frame outside recording", zap.Int("bytes", len(data)))
		return
	}

	accepted := c.hub.sessions.AddChunk(c.sessionID, data)
	if c.hub.metrics != nil {
		c.hub.metrics.RecordChunk(accepted)
	}
	if accepted {
		return
	}

	if c.limitNotified {
		c.logger.Debug("Audio frame rejected at session limit", zap.Int("bytes", len(data)))
		return
	}
	c.limitNotified = true
	c.enqueue(CreateRecordingLimitFrame(c.sessionID))
}

// handleListeningStart begins buffering a new utterance
func (c *Client) handleListeningStart() {
	c.hub.sessions.StartRecording(c.sessionID)
	c.limitNotified = false
	c.enqueue(CreateListeningStartedFrame(c.sessionID))
}

// handleListeningEnd stops buffering and launches a pipeline run over the
// recorded chunks. The run's frames are relayed by a separate goroutine so
// the read pump keeps serving pings while the pipeline works.
func (c *Client) handleListeningEnd() {
	c.hub.sessions.StopRecording(c.sessionID)
	c.enqueue(CreateListeningEndedFrame(c.sessionID))

	chunks, _ := c.hub.sessions.Chunks(c.sessionID)
	format, _ := c.hub.sessions.Format(c.sessionID)

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if c.hub.metrics != nil {
		c.hub.metrics.RecordRecording(total)
	}
	c.logger.Info("Listening ended",
		zap.Int("chunks", len(chunks)),
		zap.Int("totalBytes", total))

	c.hub.archiveRecording(c.sessionID, chunks, format)

	events, results := c.hub.pipeline.ProcessChunks(c.sessionID, chunks, format, c.engine)
	go c.relayPipeline(events, results)
}

// relayPipeline forwards one run's progress events and then its terminal
// result. It may outlive the connection; enqueue never blocks, so a dead
// client only costs dropped frames.
func (c *Client) relayPipeline(events <-chan usecase.PipelineEvent, results <-chan entities.ProcessingResult) {
	for event := range events {
		switch event.Type {
		case usecase.EventStatus:
			c.enqueue(CreateStatusFrame(c.sessionID, event.Status))
		case usecase.EventTranscript:
			c.enqueue(CreateTranscriptFrame(c.sessionID, event.Transcript))
		}
	}

	result := <-results
	if result.Success {
		c.enqueue(CreateResponseFrame(c.sessionID, result.Response, result.Audio))
		return
	}
	c.enqueue(CreateErrorFrame(c.sessionID, result.ErrorMessage))
}
