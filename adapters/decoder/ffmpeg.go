package decoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/repositories"
)

const (
	defaultBinary  = "ffmpeg"
	defaultTimeout = 30 * time.Second

	// Decoder output is fixed: the pipeline's canonical rate and layout.
	outputSampleRate = 16000
	outputChannels   = 1

	maxStderrBytes = 2 << 10
)

// FFmpegConfig holds configuration for the FFmpeg container decoder
// Optional fields with defaults:
// - Binary: path to the ffmpeg executable (default: "ffmpeg", resolved via PATH)
// - Timeout: hard limit on one decode run (default: 30s)
type FFmpegConfig struct {
	Binary  string
	Timeout time.Duration
}

// FFmpegDecoder unpacks WebM/Opus payloads by shelling out to ffmpeg. Each
// call works in its own temp directory that is removed on every exit path,
// and the subprocess is killed when the timeout expires.
type FFmpegDecoder struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// Ensure FFmpegDecoder implements the ContainerDecoder interface
var _ repositories.ContainerDecoder = (*FFmpegDecoder)(nil)

// NewFFmpegDecoder creates a decoder, applying defaults for unset fields
func NewFFmpegDecoder(config FFmpegConfig, logger *zap.Logger) *FFmpegDecoder {
	binary := config.Binary
	if binary == "" {
		binary = defaultBinary
		logger.Info("Using default decoder binary", zap.String("binary", binary))
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
		logger.Info("Using default decoder timeout", zap.Duration("timeout", timeout))
	}

	return &FFmpegDecoder{
		binary:  binary,
		timeout: timeout,
		logger:  logger,
	}
}

// Decode converts a container payload to 16 kHz mono float samples. Missing
// binary, non-zero exit, timeout, and I/O problems are all reported as
// errors; the caller maps every one of them to silence.
func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "swara-decode-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.webm")
	outputPath := filepath.Join(tmpDir, "output.pcm")

	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write decoder input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-f", "f32le",
		"-ar", fmt.Sprintf("%d", outputSampleRate),
		"-ac", fmt.Sprintf("%d", outputChannels),
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		// CommandContext kills the process on expiry, so no zombies remain.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("decoder timed out after %s", d.timeout)
		}

		detail := strings.TrimSpace(stderr.String())
		if len(detail) > maxStderrBytes {
			detail = strings.TrimSpace(detail[len(detail)-maxStderrBytes:])
		}
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("decoder failed: %s", detail)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read decoder output: %w", err)
	}

	samples := parseFloat32LE(raw)
	d.logger.Debug("Decoded container payload",
		zap.Int("inputBytes", len(data)),
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return samples, nil
}

func parseFloat32LE(raw []byte) []float32 {
	count := len(raw) / 4
	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
