package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
	"github.com/swaralabs/swara/internal/audio"
	"github.com/swaralabs/swara/internal/metrics"
)

const (
	defaultPipelineWorkers = 4
	defaultRunTimeout      = 2 * time.Minute
)

// Statuses published while a run progresses
const (
	StatusSTTProcessing = "stt_processing"
	StatusLLMProcessing = "llm_processing"
	StatusTTSProcessing = "tts_processing"
)

// Terminal failure messages. Input and engine problems surface as these
// results, never as errors crossing the pipeline boundary.
const (
	msgNoAudioData        = "No audio data received"
	msgNoAIService        = "AI service not available"
	msgSpeechUnavailable  = "Speech services not available in this environment"
	msgNoValidAudio       = "No valid audio data"
	msgCouldNotTranscribe = "Could not understand speech"
	msgGenerationFailed   = "AI failed to generate response"
)

// EventType distinguishes the non-terminal notifications of a run
type EventType string

const (
	EventStatus     EventType = "status"
	EventTranscript EventType = "transcript"
)

// PipelineEvent is a non-terminal progress notification. Status events mark
// stage transitions; the transcript event delivers recognized text as soon
// as it exists, before the language model answers.
type PipelineEvent struct {
	Type       EventType
	Status     string
	Transcript string
}

type pipelineJob struct {
	sessionID string
	chunks    [][]byte
	format    entities.AudioFormat
	engine    repositories.ChatEngine
	events    chan PipelineEvent
	result    chan entities.ProcessingResult
}

// ConversationService drives the combine → transcribe → chat → synthesize
// pipeline over a session's buffered chunks. Runs execute on a fixed-size
// worker pool so a slow engine call never blocks frame ingestion; excess
// submissions queue in order instead of being rejected.
type ConversationService struct {
	processor    *audio.Processor
	speechToText repositories.SpeechToText
	textToSpeech repositories.TextToSpeech
	sessions     *AudioSessionService
	logger       *zap.Logger
	metrics      *metrics.Metrics
	runTimeout   time.Duration

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []pipelineJob
	closed    bool
	wg        sync.WaitGroup
}

// NewConversationService creates the pipeline service and starts its
// workers. workers and runTimeout fall back to defaults when non-positive;
// m may be nil to disable instrumentation.
func NewConversationService(
	processor *audio.Processor,
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	sessions *AudioSessionService,
	workers int,
	runTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ConversationService {
	if workers <= 0 {
		workers = defaultPipelineWorkers
	}
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	s := &ConversationService{
		processor:    processor,
		speechToText: stt,
		textToSpeech: tts,
		sessions:     sessions,
		logger:       logger,
		metrics:      m,
		runTimeout:   runTimeout,
	}
	s.queueCond = sync.NewCond(&s.queueMu)

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	logger.Info("Conversation pipeline started",
		zap.Int("workers", workers),
		zap.Duration("runTimeout", runTimeout))
	return s
}

// ProcessChunks submits one pipeline run and returns its channel pair: zero
// or more progress events, then exactly one terminal result. The events
// channel closes before the result is delivered. The run owns its own
// timeout; a caller that disappears mid-run does not cancel it, the buffered
// channels absorb delivery.
func (s *ConversationService) ProcessChunks(
	sessionID string,
	chunks [][]byte,
	format entities.AudioFormat,
	engine repositories.ChatEngine,
) (<-chan PipelineEvent, <-chan entities.ProcessingResult) {
	job := pipelineJob{
		sessionID: sessionID,
		chunks:    chunks,
		format:    format,
		engine:    engine,
		events:    make(chan PipelineEvent, 8),
		result:    make(chan entities.ProcessingResult, 1),
	}

	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		close(job.events)
		job.result <- entities.FailureResult("Processing error: service is shutting down")
		close(job.result)
		return job.events, job.result
	}
	s.queue = append(s.queue, job)
	depth := len(s.queue)
	s.queueMu.Unlock()
	s.queueCond.Signal()

	if depth > 1 {
		s.logger.Debug("Pipeline run queued",
			zap.String("sessionID", sessionID),
			zap.Int("queueDepth", depth))
	}
	return job.events, job.result
}

// Shutdown lets queued runs finish and stops the workers
func (s *ConversationService) Shutdown() {
	s.queueMu.Lock()
	s.closed = true
	s.queueMu.Unlock()
	s.queueCond.Broadcast()
	s.wg.Wait()
}

func (s *ConversationService) worker() {
	defer s.wg.Done()
	for {
		job, ok := s.nextJob()
		if !ok {
			return
		}
		s.run(job)
	}
}

func (s *ConversationService) nextJob() (pipelineJob, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	for len(s.queue) == 0 && !s.closed {
		s.queueCond.Wait()
	}
	if len(s.queue) == 0 {
		return pipelineJob{}, false
	}

	job := s.queue[0]
	s.queue = s.queue[1:]
	return job, true
}

// run executes one job and delivers its notifications and terminal result.
// Chunks are cleared after every run, whatever the outcome, so a stale
// recording can never leak into the next one. Clearing happens before the
// result goes out; the caller may start a new recording the moment it sees
// the outcome.
func (s *ConversationService) run(job pipelineJob) {
	start := time.Now()

	result := s.execute(job)
	s.sessions.ClearChunks(job.sessionID)

	close(job.events)
	job.result <- result
	close(job.result)

	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	if s.metrics != nil {
		s.metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	}

	s.logger.Info("Pipeline run finished",
		zap.String("sessionID", job.sessionID),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *ConversationService) execute(job pipelineJob) (result entities.ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline run panicked",
				zap.String("sessionID", job.sessionID),
				zap.Any("panic", r))
			result = entities.FailureResult(fmt.Sprintf("Processing error: %v", r))
		}
	}()

	// Validation order matters: input first, then engine presence, then
	// capability. Each short-circuits before any engine call.
	if len(job.chunks) == 0 {
		return entities.FailureResult(msgNoAudioData)
	}
	if job.engine == nil {
		return entities.FailureResult(msgNoAIService)
	}
	if !job.engine.SpeechEnabled() {
		return entities.FailureResult(msgSpeechUnavailable)
	}

	combined := s.processor.Combine(job.chunks)
	if len(combined) == 0 {
		return entities.FailureResult(msgNoValidAudio)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	// Step 1: speech to text
	job.events <- PipelineEvent{Type: EventStatus, Status: StatusSTTProcessing}
	sttStart := time.Now()
	transcript, err := s.speechToText.Transcribe(ctx, combined, job.format)
	s.observeStage("stt", sttStart)
	if err != nil {
		s.logger.Warn("Transcription failed",
			zap.String("sessionID", job.sessionID),
			zap.Error(err))
		return entities.FailureResult(msgCouldNotTranscribe)
	}
	if strings.TrimSpace(transcript) == "" {
		return entities.FailureResult(msgCouldNotTranscribe)
	}

	// The transcript goes out before the model answers so the caller can
	// show it immediately
	job.events <- PipelineEvent{Type: EventTranscript, Transcript: transcript}

	// Step 2: language model
	job.events <- PipelineEvent{Type: EventStatus, Status: StatusLLMProcessing}
	llmStart := time.Now()
	response, err := job.engine.Chat(ctx, transcript)
	s.observeStage("llm", llmStart)
	if err != nil {
		s.logger.Warn("Chat generation failed",
			zap.String("sessionID", job.sessionID),
			zap.Error(err))
		return entities.FailureResult(msgGenerationFailed)
	}
	if strings.TrimSpace(response) == "" {
		return entities.FailureResult(msgGenerationFailed)
	}

	// Step 3: text to speech. Failure here is not fatal; a text-only
	// answer is still an answer.
	job.events <- PipelineEvent{Type: EventStatus, Status: StatusTTSProcessing}
	ttsStart := time.Now()
	audioBytes, ttsErr := s.synthesize(ctx, response)
	s.observeStage("tts", ttsStart)
	if ttsErr != nil || len(audioBytes) == 0 {
		if ttsErr != nil {
			s.logger.Warn("Speech synthesis failed, continuing with text only",
				zap.String("sessionID", job.sessionID),
				zap.Error(ttsErr))
		}
		return entities.SuccessResult(transcript, response, nil)
	}

	return entities.SuccessResult(transcript, response, audioBytes)
}

func (s *ConversationService) synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.textToSpeech == nil {
		return nil, fmt.Errorf("no synthesis engine configured")
	}
	return s.textToSpeech.Synthesize(ctx, text)
}

func (s *ConversationService) observeStage(stage string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.PipelineStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
