package importers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"tonguelab/internal/audio"
	"tonguelab/internal/dataset"
)

// ErrWavFormat marks an unreadable or unsupported wav file.
var ErrWavFormat = errors.New("unsupported wav file")

// wavContent is a decoded mono waveform.
type wavContent struct {
	samples      []float64
	samplingRate float64
}

// readWav decodes a RIFF wav file to float64 samples in [-1, 1].
// Multi-channel files are averaged down to mono; AAA records a single
// channel but other tools occasionally deliver stereo.
func readWav(path string) (*wavContent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: %s is not a RIFF wave file", ErrWavFormat, path)
	}

	var (
		format        uint16
		channels      int
		samplingRate  float64
		bitsPerSample int
		data          []byte
	)
	// walk the chunk list; fmt must precede data
	for offset := 12; offset+8 <= len(raw); {
		chunkID := string(raw[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := raw[offset+8:]
		if chunkLen > len(body) {
			chunkLen = len(body)
		}
		body = body[:chunkLen]

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrWavFormat)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			samplingRate = float64(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			data = body
		}
		// chunks are word aligned
		offset += 8 + chunkLen + chunkLen%2
	}

	if data == nil || channels == 0 || samplingRate == 0 {
		return nil, fmt.Errorf("%w: %s has no decodable audio", ErrWavFormat, path)
	}
	const pcm, ieeeFloat = 1, 3
	if format != pcm && format != ieeeFloat {
		return nil, fmt.Errorf("%w: format tag %d", ErrWavFormat, format)
	}

	bytesPerSample := bitsPerSample / 8
	frameSize := bytesPerSample * channels
	if frameSize == 0 {
		return nil, fmt.Errorf("%w: zero-sized sample frames", ErrWavFormat)
	}
	frames := len(data) / frameSize
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			chunk := data[i*frameSize+c*bytesPerSample:]
			value, err := decodeSample(chunk, format, bitsPerSample)
			if err != nil {
				return nil, err
			}
			sum += value
		}
		samples[i] = sum / float64(channels)
	}
	return &wavContent{samples: samples, samplingRate: samplingRate}, nil
}

func decodeSample(chunk []byte, format uint16, bits int) (float64, error) {
	const ieeeFloat = 3
	switch {
	case format == ieeeFloat && bits == 32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk[:4]))), nil
	case bits == 16:
		return float64(int16(binary.LittleEndian.Uint16(chunk[:2]))) / (1 << 15), nil
	case bits == 8:
		// 8-bit wav is unsigned
		return (float64(chunk[0]) - 128) / 128, nil
	case bits == 24:
		value := int32(chunk[0]) | int32(chunk[1])<<8 | int32(chunk[2])<<16
		// sign extend
		value = value << 8 >> 8
		return float64(value) / (1 << 23), nil
	case bits == 32:
		return float64(int32(binary.LittleEndian.Uint32(chunk[:4]))) / (1 << 31), nil
	default:
		return 0, fmt.Errorf("%w: %d bits per sample", ErrWavFormat, bits)
	}
}

// wavReader resolves a MonoAudio modality's data from its wav file.
// When beep detection is enabled the go-signal time and speech
// presence get recorded on the owning recording.
type wavReader struct {
	mains          *audio.MainsFilter
	mainsFrequency float64
	detectBeep     bool
}

// filterFor returns the shared mains filter when its design matches
// the file's sampling rate, redesigning one at the configured mains
// frequency otherwise.
func (r *wavReader) filterFor(samplingRate float64) (*audio.MainsFilter, error) {
	if r.mains != nil && r.mains.SamplingRate() == samplingRate {
		return r.mains, nil
	}
	frequency := r.mainsFrequency
	if frequency == 0 {
		frequency = 50
	}
	return audio.NewMainsFilter(samplingRate, frequency)
}

func (r *wavReader) ReadRecorded(m *dataset.Modality) (*dataset.Series, error) {
	files := m.FileInfo()
	content, err := readWav(files.RecordedDataFile)
	if err != nil {
		return nil, err
	}

	if r.detectBeep {
		filter, err := r.filterFor(content.samplingRate)
		if err != nil {
			return nil, err
		}
		result := audio.DetectBeep(content.samples, content.samplingRate, filter)
		if recording := m.Recording(); recording != nil && result.Detected {
			recording.SetAnnotationState("go_signal", result.Time)
			recording.SetAnnotationState("has_speech", result.HasSpeech)
		}
	}

	array, err := dataset.NewArray([]int{len(content.samples)}, content.samples)
	if err != nil {
		return nil, err
	}
	timevector := make([]float64, len(content.samples))
	for i := range timevector {
		timevector[i] = float64(i) / content.samplingRate
	}
	return dataset.NewSeries(array, content.samplingRate, timevector)
}
