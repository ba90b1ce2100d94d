package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnsupportedMedia reports a file extension no decoder claims
var ErrUnsupportedMedia = errors.New("unsupported media type")

// MediaInfo describes the decoded stream before any downmix or resample
type MediaInfo struct {
	SampleRate int
	Channels   int
}

// DecodeMediaFile decodes an uploaded media file into interleaved float
// samples. The container is chosen by file extension; the voice-note upload
// endpoint accepts wav, mp3, ogg and aiff.
func DecodeMediaFile(filename string, data []byte) ([]float32, MediaInfo, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return decodeWAVFile(data)
	case ".mp3":
		return decodeMP3File(data)
	case ".ogg", ".oga":
		return decodeOggFile(data)
	case ".aiff", ".aif":
		return decodeAIFFFile(data)
	default:
		return nil, MediaInfo{}, fmt.Errorf("%w %q", ErrUnsupportedMedia, filepath.Ext(filename))
	}
}

func decodeWAVFile(data []byte) ([]float32, MediaInfo, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, MediaInfo{}, fmt.Errorf("not a valid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, MediaInfo{}, fmt.Errorf("only 16-bit wav is supported, got %d-bit", dec.BitDepth)
	}

	format := dec.Format()
	if format == nil {
		return nil, MediaInfo{}, fmt.Errorf("wav file has no format information")
	}

	var samples []float32
	buf := &goaudio.IntBuffer{Data: make([]int, 4096), Format: format}
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, MediaInfo{}, fmt.Errorf("failed to decode wav data: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			samples = append(samples, float32(buf.Data[i])/32768.0)
		}
	}

	return samples, MediaInfo{SampleRate: format.SampleRate, Channels: format.NumChannels}, nil
}

func decodeMP3File(data []byte) ([]float32, MediaInfo, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, MediaInfo{}, fmt.Errorf("failed to open mp3 data: %w", err)
	}

	// go-mp3 always emits 16-bit stereo interleaved little-endian PCM
	var samples []float32
	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		for i := 0; i < n/2; i++ {
			v := int16(binary.LittleEndian.Uint16(buf[2*i : 2*i+2]))
			samples = append(samples, float32(v)/32768.0)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, MediaInfo{}, fmt.Errorf("failed to decode mp3 data: %w", err)
		}
	}

	return samples, MediaInfo{SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func decodeOggFile(data []byte) ([]float32, MediaInfo, error) {
	dec, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, MediaInfo{}, fmt.Errorf("failed to open ogg data: %w", err)
	}

	var samples []float32
	buf := make([]float32, 4096)
	for {
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, MediaInfo{}, fmt.Errorf("failed to decode ogg data: %w", err)
		}
	}

	return samples, MediaInfo{SampleRate: dec.SampleRate(), Channels: dec.Channels()}, nil
}

func decodeAIFFFile(data []byte) ([]float32, MediaInfo, error) {
	dec := aiff.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, MediaInfo{}, fmt.Errorf("not a valid aiff file")
	}

	dec.ReadInfo()
	if dec.BitDepth != 16 {
		return nil, MediaInfo{}, fmt.Errorf("only 16-bit aiff is supported, got %d-bit", dec.BitDepth)
	}

	format := dec.Format()
	if format == nil {
		return nil, MediaInfo{}, fmt.Errorf("aiff file has no format information")
	}

	var samples []float32
	buf := &goaudio.IntBuffer{Data: make([]int, 4096), Format: format}
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, MediaInfo{}, fmt.Errorf("failed to decode aiff data: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			samples = append(samples, float32(buf.Data[i])/32768.0)
		}
	}

	return samples, MediaInfo{SampleRate: format.SampleRate, Channels: format.NumChannels}, nil
}

// DownmixMono collapses interleaved multi-channel samples by averaging each
// frame. Mono input is returned unchanged; a trailing partial frame is
// dropped.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}

	frames := len(samples) / channels
	out := make([]float32, frames)
	inv := 1.0 / float32(channels)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		out[f] = sum * inv
	}
	return out
}

// Resample converts mono samples between rates with linear interpolation.
// Uploaded clips are short and fully in memory, so a streaming resampler
// would buy nothing here.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		outLen = 1
	}

	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
