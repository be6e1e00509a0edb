package dataset

// AnnotationType identifies a kind of point annotation on a Modality.
type AnnotationType string

const (
	// AnnotationPeaks marks detected local maxima on a 1-D metric curve.
	AnnotationPeaks AnnotationType = "PeakDetection"
	// AnnotationArticulationOnset marks a manually or automatically
	// placed articulation onset.
	AnnotationArticulationOnset AnnotationType = "ArticulationOnset"
)

// PointAnnotations holds the time-point annotations of one annotation
// type on a Modality. Indices and Times are parallel:
// samples[Indices[i]] and timevector[Indices[i]] correspond to the
// annotation at i.
type PointAnnotations struct {
	Type AnnotationType
	// Indices into the owning modality's time axis.
	Indices []int
	// Times of the annotation points in seconds.
	Times []float64
	// Params records the generating function's arguments.
	Params map[string]any
	// Properties holds per-point property arrays keyed by property name.
	// Each array is parallel to Indices.
	Properties map[string][]float64
}

// ApplyLowerTimeLimit drops annotation points before the given time.
func (p *PointAnnotations) ApplyLowerTimeLimit(timeMin float64) {
	from := 0
	for from < len(p.Times) && p.Times[from] < timeMin {
		from++
	}
	p.trim(from, len(p.Times))
}

// ApplyUpperTimeLimit drops annotation points after the given time.
func (p *PointAnnotations) ApplyUpperTimeLimit(timeMax float64) {
	to := len(p.Times)
	for to > 0 && p.Times[to-1] > timeMax {
		to--
	}
	p.trim(0, to)
}

func (p *PointAnnotations) trim(from, to int) {
	p.Indices = p.Indices[from:to]
	p.Times = p.Times[from:to]
	for key, values := range p.Properties {
		if len(values) >= to {
			p.Properties[key] = values[from:to]
		}
	}
}
