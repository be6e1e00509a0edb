package metrics

import (
	"fmt"
	"log/slog"
	"math"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// Interpolator converts raw fan-shaped ultrasound frames to
// interpolated screen-geometry frames. Provided by importers that know
// the probe geometry.
type Interpolator func(data *dataset.Array) (*dataset.Array, error)

// PDConfig controls which pixel difference variants get derived.
type PDConfig struct {
	Norms     []string
	Timesteps []int
	// MaskImages additionally derives top, bottom, and whole masked
	// variants of every requested norm.
	MaskImages bool
	// OnInterpolatedData additionally derives every variant from
	// interpolated frames. Requires Interpolate.
	OnInterpolatedData bool
	Interpolate        Interpolator
	ReleaseDataMemory  bool
}

// requestedPD expands the configuration into the full set of parameter
// records, in a deterministic order: timesteps outermost, then norms,
// then the raw/interpolated and mask variants.
func requestedPD(parentName string, cfg PDConfig) []PDParams {
	var params []PDParams
	push := func(p PDParams) {
		params = append(params, p)
		if cfg.OnInterpolatedData {
			p.Interpolated = true
			params = append(params, p)
		}
	}
	for _, timestep := range cfg.Timesteps {
		for _, norm := range cfg.Norms {
			base := PDParams{
				Norm:              norm,
				Timestep:          timestep,
				Parent:            parentName,
				ReleaseDataMemory: cfg.ReleaseDataMemory,
			}
			push(base)
			if cfg.MaskImages {
				for _, mask := range allMasks {
					masked := base
					masked.Mask = mask
					push(masked)
				}
			}
		}
	}
	return params
}

// AddPD derives the requested pixel difference modalities from the
// named parent and adds them to the recording. Variants the recording
// already holds are not recomputed.
func AddPD(recording *dataset.Recording, parentName string, cfg PDConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if recording.Excluded() {
		logger.Info("recording excluded from processing",
			slog.String("recording", recording.Name()))
		return nil
	}
	parent, ok := recording.Modality(parentName)
	if !ok {
		logger.Info("data modality not found in recording",
			slog.String("modality", parentName),
			slog.String("recording", recording.Name()))
		return nil
	}

	var missing []PDParams
	for _, params := range requestedPD(parentName, cfg) {
		if !recording.HasModality(params.Name()) {
			missing = append(missing, params)
		}
	}
	if len(missing) == 0 {
		logger.Info("nothing to compute for pixel difference",
			slog.String("recording", recording.Name()))
		return nil
	}
	logger.Info("calculating pixel difference",
		slog.String("recording", recording.Name()),
		slog.String("parent", parentName),
		slog.Int("variants", len(missing)))

	for _, params := range missing {
		series, err := calculatePD(parent, params, cfg.Interpolate)
		if err != nil {
			return fmt.Errorf("recording %s: %w", recording.Name(), err)
		}
		modality, err := dataset.NewModality(dataset.ModalityConfig{
			Meta:    params,
			Series:  series,
			Deriver: pdDeriver{params: params, interpolate: cfg.Interpolate},
		})
		if err != nil {
			return err
		}
		if err := recording.AddModality(modality, false); err != nil {
			return err
		}
		logger.Debug("added modality",
			slog.String("modality", params.Name()),
			slog.String("recording", recording.Name()))
	}

	if cfg.ReleaseDataMemory {
		if err := parent.SetData(nil); err != nil {
			return err
		}
	}
	return nil
}

// pdDeriver recomputes a released pixel difference modality from its
// parent.
type pdDeriver struct {
	params      PDParams
	interpolate Interpolator
}

func (d pdDeriver) DeriveFrom(parent *dataset.Modality) (*dataset.Series, error) {
	return calculatePD(parent, d.params, d.interpolate)
}

func calculatePD(parent *dataset.Modality, params PDParams, interpolate Interpolator) (*dataset.Series, error) {
	data, err := parent.Data()
	if err != nil {
		return nil, err
	}
	if params.Interpolated {
		if interpolate == nil {
			return nil, fmt.Errorf(
				"%w: %q requested on interpolated data but no interpolator is available",
				dataset.ErrMissingData, params.Name())
		}
		if data, err = interpolate(data); err != nil {
			return nil, err
		}
	}
	timevector, err := parent.Timevector()
	if err != nil {
		return nil, err
	}
	samplingRate, err := parent.SamplingRate()
	if err != nil {
		return nil, err
	}
	if data.Frames() <= params.Timestep {
		return nil, fmt.Errorf(
			"%w: %d frames is too short for timestep %d",
			dataset.ErrDimensionMismatch, data.Frames(), params.Timestep)
	}

	diff := absDiff(data, params.Timestep)
	masked, err := applyMask(diff, params.Mask)
	if err != nil {
		return nil, err
	}
	curve, err := normOverFrames(masked, params.Norm)
	if err != nil {
		return nil, err
	}
	array, err := dataset.NewArray([]int{len(curve)}, curve)
	if err != nil {
		return nil, err
	}
	return dataset.NewSeries(array, samplingRate, stepTimevector(timevector, params.Timestep))
}

// stepTimevector computes the timestamps of a difference series. For a
// timestep of one and other odd steps the timestamps sit halfway
// between the contributing frames; for even steps the central original
// timestamps are used directly.
func stepTimevector(timevector []float64, timestep int) []float64 {
	n := len(timevector)
	out := make([]float64, 0, n-timestep)
	switch {
	case timestep == 1:
		for i := 0; i < n-1; i++ {
			out = append(out, (timevector[i]+timevector[i+1])/2)
		}
	case timestep%2 == 1:
		begin := timestep / 2
		end := n - (timestep/2 + 1)
		for i := begin; i < end; i++ {
			out = append(out, (timevector[i]+timevector[i+1])/2)
		}
	default:
		for i := timestep / 2; i < n-timestep/2; i++ {
			out = append(out, timevector[i])
		}
	}
	return out
}

// absDiff computes |frame[i+timestep] - frame[i]| for every frame pair.
func absDiff(data *dataset.Array, timestep int) *dataset.Array {
	frames := data.Frames()
	frameSize := data.FrameSize()
	outFrames := frames - timestep
	out := make([]float64, outFrames*frameSize)
	for i := 0; i < outFrames; i++ {
		early := data.Frame(i)
		late := data.Frame(i + timestep)
		dst := out[i*frameSize : (i+1)*frameSize]
		for j := range dst {
			dst[j] = math.Abs(late[j] - early[j])
		}
	}
	shape := append([]int{outFrames}, data.Shape[1:]...)
	result, _ := dataset.NewArray(shape, out)
	return result
}

// applyMask restricts a frame-difference stack to the top or bottom
// half of each frame. Raw ultrasound frames are stored upside down, so
// the bottom of the image is the first half of each frame's rows.
func applyMask(diff *dataset.Array, mask ImageMask) (*dataset.Array, error) {
	if mask == "" || mask == MaskWhole {
		return diff, nil
	}
	if len(diff.Shape) != 3 {
		return nil, fmt.Errorf(
			"%w: image mask %q needs 3-dimensional data, got shape %s",
			dataset.ErrDimensionMismatch, mask, dataset.ShapeString(diff.Shape))
	}
	frames, rows, cols := diff.Shape[0], diff.Shape[1], diff.Shape[2]
	half := rows / 2
	rowFrom, rowTo := 0, half
	if mask == MaskBottom {
		rowFrom, rowTo = half, rows
	}
	outRows := rowTo - rowFrom
	out := make([]float64, frames*outRows*cols)
	for f := 0; f < frames; f++ {
		frame := diff.Frame(f)
		copy(out[f*outRows*cols:(f+1)*outRows*cols],
			frame[rowFrom*cols:rowTo*cols])
	}
	return dataset.NewArray([]int{frames, outRows, cols}, out)
}

// normOverFrames collapses each frame of the stack to a scalar using
// the named norm.
func normOverFrames(diff *dataset.Array, norm string) ([]float64, error) {
	frames := diff.Frames()
	out := make([]float64, frames)
	switch norm {
	case "l_inf":
		for i := 0; i < frames; i++ {
			var max float64
			for _, v := range diff.Frame(i) {
				if v > max {
					max = v
				}
			}
			out[i] = max
		}
	case "l0":
		// Series definition of the l0 norm without the convergence
		// multiplier: sum of v/(v+1) over truncated pixel values.
		for i := 0; i < frames; i++ {
			var sum float64
			for _, v := range diff.Frame(i) {
				truncated := math.Trunc(v)
				sum += truncated / (truncated + 1)
			}
			out[i] = sum
		}
	default:
		var order float64
		if _, err := fmt.Sscanf(norm, "l%g", &order); err != nil || order <= 0 {
			return nil, fmt.Errorf("%w: unknown norm %q", dataset.ErrMetadata, norm)
		}
		for i := 0; i < frames; i++ {
			var sum float64
			for _, v := range diff.Frame(i) {
				sum += math.Pow(v, order)
			}
			if order >= 1 {
				sum = math.Pow(sum, 1/order)
			}
			out[i] = sum
		}
	}
	return out, nil
}
