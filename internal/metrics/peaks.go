package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// PeakNormalisation controls how a curve is scaled before peak
// detection.
type PeakNormalisation string

const (
	NormaliseNone PeakNormalisation = "none"
	// NormaliseBottom shifts the curve so its minimum is zero.
	NormaliseBottom PeakNormalisation = "bottom"
	// NormalisePeak scales the curve so its maximum is one.
	NormalisePeak PeakNormalisation = "peak"
	// NormaliseBoth shifts to zero and scales to one.
	NormaliseBoth PeakNormalisation = "both"
)

// PeakConfig controls peak detection on metric curves.
type PeakConfig struct {
	// ModalityPattern selects modalities by substring match on their
	// canonical names.
	ModalityPattern string
	// MinDistance suppresses smaller peaks closer than this many
	// samples to a larger one.
	MinDistance int
	// MinProminence drops peaks that rise less than this much above
	// their surrounding terrain.
	MinProminence float64
	Normalise     PeakNormalisation
	// IgnoredFrames are skipped from the start of the curve, where
	// difference metrics are dominated by probe settling.
	IgnoredFrames int
	// TimeMin and TimeMax bound the search; a zero bound leaves that
	// end of the window open.
	TimeMin float64
	TimeMax float64
}

// AddPeaks runs peak detection on every modality matching the pattern
// and attaches the result as point annotations. A modality that
// already carries peak annotations is left alone.
func AddPeaks(recording *dataset.Recording, cfg PeakConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if recording.Excluded() {
		logger.Info("recording excluded from processing",
			slog.String("recording", recording.Name()))
		return nil
	}
	for _, name := range recording.ModalityNames() {
		if !strings.Contains(name, cfg.ModalityPattern) {
			continue
		}
		modality, _ := recording.Modality(name)
		if _, ok := modality.Annotations(dataset.AnnotationPeaks); ok {
			continue
		}
		annotations, err := FindPeaks(modality, cfg)
		if err != nil {
			return fmt.Errorf("recording %s: %w", recording.Name(), err)
		}
		modality.AddPointAnnotations(annotations)
		logger.Info("added peak annotations",
			slog.String("modality", name),
			slog.String("recording", recording.Name()),
			slog.Int("peaks", len(annotations.Indices)))
	}
	return nil
}

// FindPeaks locates local maxima on a one-dimensional metric curve.
func FindPeaks(modality *dataset.Modality, cfg PeakConfig) (*dataset.PointAnnotations, error) {
	data, err := modality.Data()
	if err != nil {
		return nil, err
	}
	if len(data.Shape) != 1 {
		return nil, fmt.Errorf(
			"%w: peak detection needs a 1-dimensional curve, got shape %s",
			dataset.ErrDimensionMismatch, dataset.ShapeString(data.Shape))
	}
	times, err := modality.Timevector()
	if err != nil {
		return nil, err
	}

	offset := cfg.IgnoredFrames
	if offset > len(data.Data) {
		offset = len(data.Data)
	}
	values := data.Data[offset:]
	searchTimes := times[offset:]
	if cfg.TimeMin > 0 || cfg.TimeMax > 0 {
		from, to := 0, len(searchTimes)
		if cfg.TimeMin > 0 {
			for from < to && searchTimes[from] <= cfg.TimeMin {
				from++
			}
		}
		if cfg.TimeMax > 0 {
			for to > from && searchTimes[to-1] >= cfg.TimeMax {
				to--
			}
		}
		offset += from
		values = values[from:to]
		searchTimes = searchTimes[from:to]
	}

	values = normalise(values, cfg.Normalise)
	peaks, prominences := findPeaks(values, cfg.MinDistance, cfg.MinProminence)

	annotations := &dataset.PointAnnotations{
		Type:    dataset.AnnotationPeaks,
		Indices: make([]int, len(peaks)),
		Times:   make([]float64, len(peaks)),
		Params: map[string]any{
			"min_distance":   cfg.MinDistance,
			"min_prominence": cfg.MinProminence,
			"normalise":      string(cfg.Normalise),
			"ignored_frames": cfg.IgnoredFrames,
		},
		Properties: map[string][]float64{
			"prominences": prominences,
		},
	}
	for i, peak := range peaks {
		annotations.Indices[i] = offset + peak
		annotations.Times[i] = searchTimes[peak]
	}
	return annotations, nil
}

func normalise(values []float64, mode PeakNormalisation) []float64 {
	if mode == NormaliseNone || mode == "" || len(values) == 0 {
		return values
	}
	out := append([]float64{}, values...)
	if mode == NormaliseBottom || mode == NormaliseBoth {
		min := out[0]
		for _, v := range out[1:] {
			if v < min {
				min = v
			}
		}
		for i := range out {
			out[i] -= min
		}
	}
	if mode == NormalisePeak || mode == NormaliseBoth {
		max := out[0]
		for _, v := range out[1:] {
			if v > max {
				max = v
			}
		}
		if max != 0 {
			for i := range out {
				out[i] /= max
			}
		}
	}
	return out
}

// findPeaks returns the indices of local maxima that clear the
// prominence threshold, with smaller peaks within minDistance of a
// larger one suppressed.
func findPeaks(values []float64, minDistance int, minProminence float64) ([]int, []float64) {
	var candidates []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] <= values[i-1] {
			continue
		}
		// walk over a plateau; the peak index is the plateau's left
		// edge
		j := i
		for j < len(values)-1 && values[j+1] == values[i] {
			j++
		}
		if j < len(values)-1 && values[j+1] < values[i] {
			candidates = append(candidates, i)
		}
		i = j
	}

	var peaks []int
	var prominences []float64
	for _, peak := range candidates {
		if p := prominence(values, peak); p >= minProminence {
			peaks = append(peaks, peak)
			prominences = append(prominences, p)
		}
	}

	if minDistance > 1 && len(peaks) > 1 {
		order := make([]int, len(peaks))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return values[peaks[order[a]]] > values[peaks[order[b]]]
		})
		keep := make([]bool, len(peaks))
		for i := range keep {
			keep[i] = true
		}
		for _, i := range order {
			if !keep[i] {
				continue
			}
			for j := range peaks {
				if j == i || !keep[j] {
					continue
				}
				if abs(peaks[j]-peaks[i]) < minDistance {
					keep[j] = false
				}
			}
		}
		var filteredPeaks []int
		var filteredProms []float64
		for i, k := range keep {
			if k {
				filteredPeaks = append(filteredPeaks, peaks[i])
				filteredProms = append(filteredProms, prominences[i])
			}
		}
		peaks, prominences = filteredPeaks, filteredProms
	}
	return peaks, prominences
}

// prominence is how far the peak rises above the higher of the two
// lowest points separating it from higher terrain or the curve's ends.
func prominence(values []float64, peak int) float64 {
	height := values[peak]

	leftMin := height
	for i := peak - 1; i >= 0; i-- {
		if values[i] > height {
			break
		}
		if values[i] < leftMin {
			leftMin = values[i]
		}
	}
	rightMin := height
	for i := peak + 1; i < len(values); i++ {
		if values[i] > height {
			break
		}
		if values[i] < rightMin {
			rightMin = values[i]
		}
	}

	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return height - base
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
