package audio

import (
	"context"
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/swaralabs/swara/domain/entities"
	"github.com/swaralabs/swara/domain/repositories"
)

// wavHeaderSize is the canonical RIFF/WAVE PCM header length produced by
// FromFloatSamples and skipped by ToFloatSamples.
const wavHeaderSize = 44

const (
	quietRMSThreshold = 0.01
	quietGain         = 3.0
	normalizeFloor    = 0.1
	normalizeCeil     = 0.9
	normalizeTarget   = 0.8
)

// Processor converts audio bytes between containers and the pipeline's
// canonical float-sample representation. It is stateless; every operation
// takes explicit formats, so one instance serves all sessions.
type Processor struct {
	decoder repositories.ContainerDecoder
	logger  *zap.Logger
}

// NewProcessor creates a processor. decoder handles WebM/Opus payloads and
// may be nil, in which case those payloads decode to silence.
func NewProcessor(logger *zap.Logger, decoder repositories.ContainerDecoder) *Processor {
	return &Processor{
		decoder: decoder,
		logger:  logger,
	}
}

// Convert transcodes data from src to dst. Same container is an identity
// fast path. When decoding yields nothing the input is returned unchanged:
// conversion degrades to passthrough instead of failing the pipeline.
func (p *Processor) Convert(ctx context.Context, data []byte, src, dst entities.AudioFormat) []byte {
	if src.Container == dst.Container {
		return data
	}

	samples := p.ToFloatSamples(ctx, data, src)
	if len(samples) == 0 {
		p.logger.Warn("audio conversion produced no samples, passing input through",
			zap.String("source", string(src.Container)),
			zap.String("target", string(dst.Container)),
			zap.Int("bytes", len(data)),
		)
		return data
	}

	return p.FromFloatSamples(samples, dst)
}

// ToFloatSamples decodes data into normalized samples in [-1.0, 1.0].
// Undecodable input yields an empty slice, never an error.
func (p *Processor) ToFloatSamples(ctx context.Context, data []byte, format entities.AudioFormat) []float32 {
	switch format.Container {
	case entities.ContainerWAV:
		if len(data) <= wavHeaderSize {
			return nil
		}
		return decodePCM16(data[wavHeaderSize:])
	case entities.ContainerWebMOpus:
		// Browsers frequently label plain WAV recordings with a WebM mime
		// type; trust the bytes over the label.
		if entities.DetectFormat(data).Container == entities.ContainerWAV {
			return p.ToFloatSamples(ctx, data, entities.WAVFormat())
		}
		return p.decodeExternal(ctx, data)
	default:
		return decodePCM16(data)
	}
}

func (p *Processor) decodeExternal(ctx context.Context, data []byte) []float32 {
	if p.decoder == nil {
		p.logger.Warn("no container decoder configured, treating payload as silence",
			zap.Int("bytes", len(data)))
		return nil
	}

	samples, err := p.decoder.Decode(ctx, data)
	if err != nil {
		p.logger.Warn("external decode failed, treating payload as silence",
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return nil
	}
	return samples
}

// FromFloatSamples encodes samples as 16-bit little-endian PCM. The WAV
// container gets the standard 44-byte header built from the format's
// parameters; every other container emits bare samples. Input is clamped to
// [-1, 1] before quantization so out-of-range values saturate instead of
// wrapping around.
func (p *Processor) FromFloatSamples(samples []float32, format entities.AudioFormat) []byte {
	pcm := encodePCM16(samples)
	if format.Container != entities.ContainerWAV {
		return pcm
	}
	return PCMToWAV(pcm, format.SampleRateHz, format.ChannelCount, format.BitsPerSample)
}

// Combine concatenates chunks in insertion order, skipping nil and empty
// members. An empty input produces an empty result, never an error.
func (p *Processor) Combine(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}

	combined := make([]byte, 0, total)
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		combined = append(combined, chunk...)
	}
	return combined
}

// Preprocess levels a recording before recognition: quiet signals get a
// fixed gain boost, and a peak inside (0.1, 0.9) is scaled to 0.8. Both
// passes are no-ops outside their trigger ranges, so silence is not
// amplified into noise and well-leveled audio is left alone. Input that
// cannot be decoded is returned unchanged.
func (p *Processor) Preprocess(ctx context.Context, data []byte, format entities.AudioFormat) []byte {
	samples := p.ToFloatSamples(ctx, data, format)
	if len(samples) == 0 {
		return data
	}

	if rms(samples) < quietRMSThreshold {
		for i, s := range samples {
			boosted := s * quietGain
			if boosted > 1 {
				boosted = 1
			} else if boosted < -1 {
				boosted = -1
			}
			samples[i] = boosted
		}
	}

	peak := peakAbs(samples)
	if peak > normalizeFloor && peak < normalizeCeil {
		scale := normalizeTarget / peak
		for i := range samples {
			samples[i] *= scale
		}
	}

	return p.FromFloatSamples(samples, format)
}

// PCMToWAV prepends the standard 44-byte RIFF/WAVE PCM header to
// already-encoded PCM bytes.
func PCMToWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	out := make([]byte, wavHeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	copy(out[wavHeaderSize:], pcm)
	return out
}

func decodePCM16(data []byte) []float32 {
	count := len(data) / 2
	if count == 0 {
		return nil
	}

	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

func encodePCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:2*i+2], uint16(float32ToInt16(s)))
	}
	return pcm
}

func float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	// 32767 on the positive side to avoid int16 overflow
	return int16(x * 32767.0)
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func peakAbs(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
