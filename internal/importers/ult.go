package importers

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tonguelab/internal/dataset"
)

// parseUltrasoundMeta parses an AAA ultrasound metadata file, either
// "<basename>US.txt" or "<basename>.param"; the two share a key=value
// line format. TimeInSecsOfFirstFrame becomes the modality's time
// offset rather than a metadata field, so nothing downstream can set
// it independently of the timevector.
func parseUltrasoundMeta(path string) (dataset.UltrasoundMeta, error) {
	meta := dataset.UltrasoundMeta{
		RecordedMeta: dataset.RecordedMeta{Kind: dataset.KindRawUltrasound},
	}

	f, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("reading ultrasound metadata: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return meta, fmt.Errorf(
				"%w: malformed line %q in %s", dataset.ErrMetadata, line, path)
		}
		key = strings.TrimSpace(key)
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			// the Kind key names the probe, which we do not use
			continue
		}
		switch key {
		case "NumVectors":
			meta.NumVectors = int(number)
		case "PixPerVector":
			meta.PixPerVector = int(number)
		case "ZeroOffset":
			meta.ZeroOffset = number
		case "BitsPerPixel":
			meta.BitsPerPixel = int(number)
		case "Angle":
			meta.Angle = number
		case "PixelsPerMm":
			meta.PixelsPerMM = number
		case "FramesPerSec":
			meta.FramesPerSec = number
		case "TimeInSecsOfFirstFrame":
			meta.TimeOffset = number
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, fmt.Errorf("reading ultrasound metadata: %w", err)
	}
	return meta, meta.Validate()
}

// ultReader resolves a RawUltrasound modality's data from an AAA .ult
// file: raw unsigned bytes, one per pixel, frame after frame.
type ultReader struct {
	meta dataset.UltrasoundMeta
}

func (r *ultReader) ReadRecorded(m *dataset.Modality) (*dataset.Series, error) {
	files := m.FileInfo()
	raw, err := os.ReadFile(files.RecordedDataFile)
	if err != nil {
		return nil, fmt.Errorf("reading ultrasound data: %w", err)
	}
	if r.meta.BitsPerPixel != 8 {
		return nil, fmt.Errorf(
			"%w: only 8 bits per pixel is supported, got %d",
			dataset.ErrMetadata, r.meta.BitsPerPixel)
	}
	frameSize := r.meta.NumVectors * r.meta.PixPerVector
	if frameSize == 0 || len(raw) < frameSize {
		return nil, fmt.Errorf(
			"%w: %s holds no complete frames of %d pixels",
			dataset.ErrMissingData, files.RecordedDataFile, frameSize)
	}
	frames := len(raw) / frameSize

	data := make([]float64, frames*frameSize)
	for i, b := range raw[:frames*frameSize] {
		data[i] = float64(b)
	}
	array, err := dataset.NewArray(
		[]int{frames, r.meta.NumVectors, r.meta.PixPerVector}, data)
	if err != nil {
		return nil, err
	}

	timevector := make([]float64, frames)
	for i := range timevector {
		timevector[i] = r.meta.TimeOffset + float64(i)/r.meta.FramesPerSec
	}
	return dataset.NewSeries(array, r.meta.FramesPerSec, timevector)
}
