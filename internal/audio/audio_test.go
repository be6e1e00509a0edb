package audio

import (
	"math"
	"testing"
)

func sine(frequency, amplitude, samplingRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/samplingRate)
	}
	return out
}

func rms(signal []float64) float64 {
	var sum float64
	for _, v := range signal {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(signal)))
}

func TestMainsFilterAttenuatesHum(t *testing.T) {
	const rate = 22050.0
	filter, err := NewMainsFilter(rate, 50)
	if err != nil {
		t.Fatalf("NewMainsFilter failed: %v", err)
	}
	hum := sine(25, 1.0, rate, int(rate))
	filtered := filter.Apply(hum)
	if got := rms(filtered); got > 0.05*rms(hum) {
		t.Fatalf("25 Hz hum rms after filtering = %g, want < %g", got, 0.05*rms(hum))
	}
}

func TestMainsFilterPassesSpeechBand(t *testing.T) {
	const rate = 22050.0
	filter, err := NewMainsFilter(rate, 50)
	if err != nil {
		t.Fatalf("NewMainsFilter failed: %v", err)
	}
	tone := sine(1000, 1.0, rate, int(rate))
	filtered := filter.Apply(tone)
	if got := rms(filtered); got < 0.9*rms(tone) {
		t.Fatalf("1 kHz tone rms after filtering = %g, want > %g", got, 0.9*rms(tone))
	}
}

func TestMainsFilterRejectsBadSpec(t *testing.T) {
	if _, err := NewMainsFilter(0, 50); err == nil {
		t.Fatalf("NewMainsFilter accepted a zero sampling rate")
	}
	if _, err := NewMainsFilter(100, 60); err == nil {
		t.Fatalf("NewMainsFilter accepted a mains frequency above Nyquist")
	}
}

func TestDetectBeep(t *testing.T) {
	rate := 22050.0
	const beepOnset = 0.3
	total := int(2 * rate)
	frames := make([]float64, total)

	beep := sine(1000, 0.5, rate, int(0.05*rate))
	copy(frames[int(beepOnset*rate):], beep)
	speech := sine(300, 0.3, rate, int(0.9*rate))
	copy(frames[int(1.1*rate):], speech)

	filter, err := NewMainsFilter(rate, 50)
	if err != nil {
		t.Fatalf("NewMainsFilter failed: %v", err)
	}
	result := DetectBeep(frames, rate, filter)
	if !result.Detected {
		t.Fatalf("no beep detected")
	}
	if math.Abs(result.Time-beepOnset) > 0.005 {
		t.Fatalf("beep time = %g, want %g within 5 ms", result.Time, beepOnset)
	}
	if !result.HasSpeech {
		t.Fatalf("speech after the beep was not detected")
	}
}

func TestDetectBeepSilence(t *testing.T) {
	const rate = 22050.0
	frames := make([]float64, int(0.5*rate))
	result := DetectBeep(frames, rate, nil)
	if result.Detected {
		t.Fatalf("detected a beep in silence at t = %g", result.Time)
	}
}

func TestDetectBeepEmptyInput(t *testing.T) {
	if result := DetectBeep(nil, 22050, nil); result.Detected {
		t.Fatalf("detected a beep in empty input")
	}
}
