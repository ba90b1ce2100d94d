package entities

// Container represents the outer encoding of an audio byte stream
type Container string

const (
	ContainerWAV      Container = "wav"
	ContainerWebMOpus Container = "webm_opus"
	ContainerRawPCM   Container = "raw_pcm"
	ContainerUnknown  Container = "unknown"
)

// Default parameters applied whenever a format cannot be read from the data
const (
	DefaultSampleRateHz  = 16000
	DefaultChannelCount  = 1
	DefaultBitsPerSample = 16
)

// AudioFormat describes an audio encoding: the container plus the sample
// parameters inside it. Values are immutable; construct them through the
// preset functions or DetectFormat.
type AudioFormat struct {
	Container     Container `json:"container"`
	SampleRateHz  int       `json:"sample_rate_hz"`
	ChannelCount  int       `json:"channel_count"`
	BitsPerSample int       `json:"bits_per_sample"`
}

// WAVFormat returns the 16 kHz mono 16-bit WAV preset
func WAVFormat() AudioFormat {
	return AudioFormat{
		Container:     ContainerWAV,
		SampleRateHz:  DefaultSampleRateHz,
		ChannelCount:  DefaultChannelCount,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// WebMOpusFormat returns the 48 kHz mono WebM/Opus preset used by browser
// MediaRecorder streams
func WebMOpusFormat() AudioFormat {
	return AudioFormat{
		Container:     ContainerWebMOpus,
		SampleRateHz:  48000,
		ChannelCount:  DefaultChannelCount,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// RawPCMFormat returns the 16 kHz mono 16-bit headerless PCM preset
func RawPCMFormat() AudioFormat {
	return AudioFormat{
		Container:     ContainerRawPCM,
		SampleRateHz:  DefaultSampleRateHz,
		ChannelCount:  DefaultChannelCount,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// UnknownFormat returns the fallback format for data too short to classify.
// It still carries usable defaults so callers never need a nil check.
func UnknownFormat() AudioFormat {
	return AudioFormat{
		Container:     ContainerUnknown,
		SampleRateHz:  DefaultSampleRateHz,
		ChannelCount:  DefaultChannelCount,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// DetectFormat classifies raw bytes by magic-number sniffing. It is total:
// any input, including empty, yields a well-formed format and never an error.
func DetectFormat(data []byte) AudioFormat {
	if len(data) < 4 {
		return UnknownFormat()
	}

	// RIFF....WAVE marks a WAV container
	if string(data[0:4]) == "RIFF" && len(data) >= 12 && string(data[8:12]) == "WAVE" {
		return WAVFormat()
	}

	// EBML magic, the WebM/Matroska container browsers record Opus into
	if data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3 {
		return WebMOpusFormat()
	}

	return RawPCMFormat()
}
