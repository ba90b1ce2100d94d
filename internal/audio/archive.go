package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
)

// Archiver persists completed utterances as WAV files for later review.
// A nil Archiver is valid and archives nothing, which is how the feature
// stays off when no archive directory is configured.
type Archiver struct {
	dir       string
	processor *Processor
	logger    *zap.Logger
}

// NewArchiver creates an archiver rooted at dir. An empty dir disables
// archiving by returning nil.
func NewArchiver(dir string, processor *Processor, logger *zap.Logger) *Archiver {
	if dir == "" {
		return nil
	}

	return &Archiver{
		dir:       dir,
		processor: processor,
		logger:    logger,
	}
}

// ArchiveChunks combines a recording's buffered frames and archives the
// result as one file.
func (a *Archiver) ArchiveChunks(ctx context.Context, sessionID string, chunks [][]byte, format entities.AudioFormat) (string, error) {
	if a == nil || len(chunks) == 0 {
		return "", nil
	}
	return a.Archive(ctx, sessionID, a.processor.Combine(chunks), format)
}

// Archive converts one combined recording to WAV and writes it under a
// unique name. It returns the written path; callers treat errors as
// log-and-continue, a failed archive never disturbs the conversation.
func (a *Archiver) Archive(ctx context.Context, sessionID string, data []byte, format entities.AudioFormat) (string, error) {
	if a == nil || len(data) == 0 {
		return "", nil
	}

	wavData := a.processor.Convert(ctx, data, format, entities.WAVFormat())
	if entities.DetectFormat(wavData).Container != entities.ContainerWAV {
		return "", fmt.Errorf("recording could not be converted to wav")
	}
	if len(wavData) <= wavHeaderSize {
		return "", fmt.Errorf("recording is empty after conversion")
	}

	sampleRate := int(binary.LittleEndian.Uint32(wavData[24:28]))
	channels := int(binary.LittleEndian.Uint16(wavData[22:24]))

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.wav", sessionID, uuid.New().String())
	path := filepath.Join(a.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	pcm := wavData[wavHeaderSize:]
	ints := make([]int, len(pcm)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2])))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("failed to write archive samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive file: %w", err)
	}

	a.logger.Debug("Recording archived",
		zap.String("sessionID", sessionID),
		zap.String("path", path),
		zap.Int("samples", len(ints)))

	return path, nil
}
