package websocket

import (
	"time"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/internal/metrics"
	"github.com/swaralabs/swara/usecase"
)

// SessionCleanupService removes audio sessions whose client is gone. The
// unregister path already does this; the sweep catches anything that slips
// through and reconciles the active-sessions gauge.
type SessionCleanupService struct {
	hub      *Hub
	sessions *usecase.AudioSessionService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(hub *Hub, sessions *usecase.AudioSessionService, m *metrics.Metrics, logger *zap.Logger) *SessionCleanupService {
	return &SessionCleanupService{
		hub:      hub,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started")
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	// Run cleanup every 30 minutes
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	// Run initial cleanup after 1 minute
	initialTimer := time.NewTimer(1 * time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runCleanup()
			// Initial timer only runs once
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup drops sessions no connected client owns. A session buffers up
// to 10 MiB, so an orphan is worth reclaiming even if it should never occur.
func (s *SessionCleanupService) runCleanup() {
	live := s.hub.liveSessionIDs()

	removed := 0
	for _, id := range s.sessions.SessionIDs() {
		if !live[id] {
			s.sessions.RemoveSession(id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Warn("Removed orphaned audio sessions", zap.Int("count", removed))
	}

	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.hub.ClientCount())
	}

	s.logger.Debug("Session cleanup completed",
		zap.Int("sessions", s.sessions.SessionCount()),
		zap.Int("clients", s.hub.ClientCount()))
}
