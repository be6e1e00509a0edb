package audio

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// BeepResult reports the outcome of go-signal detection on one audio
// track.
type BeepResult struct {
	// Time of the beep onset in seconds from the start of the track.
	Time float64
	// Detected is false when no beep-like transient was found.
	Detected bool
	// HasSpeech reports whether the energy after the beep exceeds the
	// energy before it, which indicates the participant spoke.
	HasSpeech bool
}

// beep band in Hz; the go-signal is a 1 kHz sine burst.
const (
	beepBandLow  = 950.0
	beepBandHigh = 1050.0
)

// DetectBeep finds a 1 kHz 50 ms beep near the beginning of a sound
// sample. The beep is assumed to be the first properly detectable
// sound and to start with a rising edge: a rough position comes from
// the band-passed intensity, then the onset is pinpointed by walking
// back from the first negative half wave over its zero crossing.
func DetectBeep(frames []float64, samplingRate float64, filter *MainsFilter) BeepResult {
	if len(frames) == 0 || samplingRate <= 0 {
		return BeepResult{}
	}
	hpSignal := frames
	if filter != nil {
		hpSignal = filter.Apply(frames)
	}
	bpSignal := bandPass(frames, samplingRate, beepBandLow, beepBandHigh)

	windowLength := int(0.001 * samplingRate)
	if windowLength < 2 {
		windowLength = 2
	}
	intSignal := intensity(hpSignal, windowLength)
	bpIntSignal := intensity(bpSignal, windowLength)

	// Within the first second there is only the go-signal, never
	// speech; silence the high-passed intensity there so the speech
	// comparison below is not polluted by the beep itself.
	firstSecond := int(samplingRate)
	for i := 0; i < len(intSignal) && i < firstSecond; i++ {
		intSignal[i] = -80
	}

	// Rough beep position: first spike in the band-passed intensity.
	thresholdBP := 0.9*maxOf(bpIntSignal) + 0.1*minOf(bpIntSignal)
	spike := -1
	for i, v := range bpIntSignal {
		if v > thresholdBP {
			spike = i
			break
		}
	}
	if spike < 0 {
		return BeepResult{}
	}

	// Refine inside a 50 ms region around the spike: find the first
	// clearly negative half wave, then its preceding zero crossing.
	margin := int(0.025 * samplingRate)
	roiBeg := spike - margin
	if roiBeg < 0 {
		roiBeg = 0
	}
	roiEnd := spike + margin
	if roiEnd > len(frames) {
		roiEnd = len(frames)
	}
	threshold := 0.1 * minOf(frames[:roiEnd])
	approx := -1
	for i := roiBeg; i < roiEnd; i++ {
		if frames[i] < threshold {
			approx = i
			break
		}
	}
	if approx < 0 {
		return BeepResult{}
	}
	beepIndex := approx
	for i := approx; i < roiEnd-1; i++ {
		if math.Signbit(frames[i]) != math.Signbit(frames[i+1]) {
			beepIndex = i + 1 - windowLength
			break
		}
	}
	if beepIndex < 0 {
		beepIndex = 0
	}

	result := BeepResult{
		Time:     float64(beepIndex) / samplingRate,
		Detected: true,
	}

	// Speech happened if the track is louder after the beep than
	// before it. 75 ms past the onset clears the beep's own energy.
	splitPoint := beepIndex + int(0.075*samplingRate)
	if splitPoint < len(intSignal) && beepIndex > 0 {
		preBeep := meanOf(intSignal[:beepIndex])
		postBeep := meanOf(intSignal[splitPoint:])
		result.HasSpeech = preBeep < postBeep
	}
	return result
}

// bandPass filters the signal to the given band by zeroing FFT bins
// outside it.
func bandPass(signal []float64, samplingRate, low, high float64) []float64 {
	spectrum := fft.FFTReal(signal)
	n := len(spectrum)
	binWidth := samplingRate / float64(n)
	for i := range spectrum {
		freq := float64(i) * binWidth
		if i > n/2 {
			freq = float64(n-i) * binWidth
		}
		if freq < low || freq > high {
			spectrum[i] = 0
		}
	}
	inverse := fft.IFFT(spectrum)
	out := make([]float64, len(signal))
	for i := range out {
		out[i] = real(inverse[i])
	}
	return out
}

// intensity computes a windowed intensity curve in dB-like units:
// ten times the log of the windowed root mean square of the signal.
func intensity(signal []float64, windowLength int) []float64 {
	weights := window.Hann(windowLength)
	var weightSum float64
	for _, w := range weights {
		weightSum += w
	}
	half := windowLength / 2
	out := make([]float64, len(signal))
	for i := range signal {
		var sum float64
		for j, w := range weights {
			k := i - half + j
			if k < 0 || k >= len(signal) {
				continue
			}
			sum += w * signal[k] * signal[k]
		}
		rms := math.Sqrt(sum / weightSum)
		if rms <= 0 {
			out[i] = -80
			continue
		}
		out[i] = 10 * math.Log(rms)
	}
	return out
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
