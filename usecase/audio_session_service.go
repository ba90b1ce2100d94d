package usecase

import (
	"sync"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
)

// Per-session ingestion ceilings. A live microphone stream must not grow a
// session without bound; appends beyond either limit are refused.
const (
	MaxSessionChunks = 1000
	MaxSessionBytes  = 10 << 20 // 10 MiB
)

// audioSession is the mutable per-connection recording state. It is owned
// exclusively by the AudioSessionService; the embedded mutex makes each
// compound operation (check limits, then append) atomic per session.
type audioSession struct {
	mu         sync.Mutex
	recording  bool
	chunks     [][]byte
	totalBytes int
	format     entities.AudioFormat
}

// AudioSessionService tracks recording state for many concurrent sessions.
// The read-write mutex only guards the session map, so operations on
// different session ids never block each other.
type AudioSessionService struct {
	mu       sync.RWMutex
	sessions map[string]*audioSession
	logger   *zap.Logger
}

// NewAudioSessionService creates an empty session manager
func NewAudioSessionService(logger *zap.Logger) *AudioSessionService {
	return &AudioSessionService{
		sessions: make(map[string]*audioSession),
		logger:   logger,
	}
}

func (s *AudioSessionService) lookup(id string) *audioSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// InitializeSession creates default state for id: not recording, no chunks,
// unknown format. Calling it again for the same id resets the session, so
// the protocol handler calls it exactly once per connection.
func (s *AudioSessionService) InitializeSession(id string) {
	s.mu.Lock()
	s.sessions[id] = &audioSession{format: entities.UnknownFormat()}
	s.mu.Unlock()

	s.logger.Info("Audio session initialized", zap.String("sessionID", id))
}

// StartRecording raises the recording flag and clears chunks left over from
// a prior recording. This is the reset point between utterances.
func (s *AudioSessionService) StartRecording(id string) {
	sess := s.lookup(id)
	if sess == nil {
		s.logger.Warn("Start recording for unknown session", zap.String("sessionID", id))
		return
	}

	sess.mu.Lock()
	sess.recording = true
	sess.chunks = nil
	sess.totalBytes = 0
	sess.mu.Unlock()

	s.logger.Debug("Recording started", zap.String("sessionID", id))
}

// StopRecording lowers the recording flag. Chunks are kept; the pipeline
// still needs them.
func (s *AudioSessionService) StopRecording(id string) {
	sess := s.lookup(id)
	if sess == nil {
		s.logger.Warn("Stop recording for unknown session", zap.String("sessionID", id))
		return
	}

	sess.mu.Lock()
	sess.recording = false
	count := len(sess.chunks)
	sess.mu.Unlock()

	s.logger.Debug("Recording stopped",
		zap.String("sessionID", id),
		zap.Int("chunks", count))
}

// AddChunk appends one binary frame to the session's buffer. It reports
// false, without mutating anything, when the session is unknown or when
// either ingestion ceiling would be exceeded. The first chunk appended into
// an empty buffer determines the session's detected format.
func (s *AudioSessionService) AddChunk(id string, data []byte) bool {
	sess := s.lookup(id)
	if sess == nil {
		s.logger.Warn("Chunk for unknown session rejected", zap.String("sessionID", id))
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.chunks) >= MaxSessionChunks {
		s.logger.Warn("Chunk rejected, session chunk limit reached",
			zap.String("sessionID", id),
			zap.Int("chunks", len(sess.chunks)))
		return false
	}
	if sess.totalBytes+len(data) > MaxSessionBytes {
		s.logger.Warn("Chunk rejected, session byte limit reached",
			zap.String("sessionID", id),
			zap.Int("totalBytes", sess.totalBytes),
			zap.Int("chunkBytes", len(data)))
		return false
	}

	if len(sess.chunks) == 0 {
		sess.format = entities.DetectFormat(data)
		s.logger.Debug("Session format detected",
			zap.String("sessionID", id),
			zap.String("container", string(sess.format.Container)))
	}

	sess.chunks = append(sess.chunks, data)
	sess.totalBytes += len(data)
	return true
}

// ClearChunks empties the buffer without touching the recording flag or the
// detected format.
func (s *AudioSessionService) ClearChunks(id string) {
	sess := s.lookup(id)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.chunks = nil
	sess.totalBytes = 0
	sess.mu.Unlock()
}

// RemoveSession purges all state for id. Afterwards the id behaves as
// unknown everywhere.
func (s *AudioSessionService) RemoveSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Info("Audio session removed", zap.String("sessionID", id))
}

// IsRecording reports the session's recording flag, false for unknown ids
func (s *AudioSessionService) IsRecording(id string) bool {
	sess := s.lookup(id)
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.recording
}

// Chunks returns a snapshot of the session's buffered frames in insertion
// order. The second return is false for unknown ids.
func (s *AudioSessionService) Chunks(id string) ([][]byte, bool) {
	sess := s.lookup(id)
	if sess == nil {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	snapshot := make([][]byte, len(sess.chunks))
	copy(snapshot, sess.chunks)
	return snapshot, true
}

// Format returns the session's detected format. The second return is false
// for unknown ids.
func (s *AudioSessionService) Format(id string) (entities.AudioFormat, bool) {
	sess := s.lookup(id)
	if sess == nil {
		return entities.AudioFormat{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.format, true
}

// SessionCount reports how many sessions are live
func (s *AudioSessionService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionIDs snapshots the ids of all live sessions
func (s *AudioSessionService) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
