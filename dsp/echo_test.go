package dsp

import (
	"math"
	"testing"
)

func makeTone(freq, amplitude float64, n, sampleRate int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		samples[i] = int16(v * 32767)
	}
	return samples
}

func peakAbs(samples []int16) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func TestEchoCanceller_NLMSReducesEcho(t *testing.T) {
	// The far-end reference leaks back into the microphone as a scaled
	// copy. Once the filter adapts, the residual should be well below
	// the raw echo level.
	const n = 8000
	reference := makeTone(300, 0.6, n, 8000)
	echo := make([]int16, n)
	for i := range echo {
		echo[i] = int16(float64(reference[i]) * 0.5)
	}

	e := NewEchoCanceller(DefaultFilterLength, DefaultStepSize)
	out := e.Process(echo, reference)

	if len(out) != n {
		t.Fatalf("output length = %d, want %d", len(out), n)
	}

	// Compare steady-state peaks, skipping the adaptation transient.
	tail := n / 2
	echoPeak := peakAbs(echo[tail:])
	outPeak := peakAbs(out[tail:])
	if outPeak >= echoPeak {
		t.Errorf("echo not reduced: out peak %.0f >= echo peak %.0f", outPeak, echoPeak)
	}
}

func TestEchoCanceller_NoReferencePreservesShape(t *testing.T) {
	input := makeTone(440, 0.4, 4000, 8000)

	e := NewEchoCanceller(DefaultFilterLength, DefaultStepSize)
	out := e.Process(input, nil)

	if len(out) != len(input) {
		t.Errorf("output length = %d, want %d", len(out), len(input))
	}
}

func TestEchoCanceller_ShortChunkPassesThrough(t *testing.T) {
	// A chunk below the analysis window cannot be transformed; it must
	// come back unmodified rather than failing.
	input := []int16{100, -100, 50}

	e := NewEchoCanceller(DefaultFilterLength, DefaultStepSize)
	out := e.Process(input, nil)

	if len(out) != len(input) {
		t.Fatalf("output length = %d, want %d", len(out), len(input))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], input[i])
		}
	}
}

func TestEchoCanceller_EmptyInput(t *testing.T) {
	e := NewEchoCanceller(DefaultFilterLength, DefaultStepSize)
	if out := e.Process(nil, nil); len(out) != 0 {
		t.Errorf("output length = %d, want 0", len(out))
	}
}

func TestEchoCanceller_Reset(t *testing.T) {
	reference := makeTone(300, 0.6, 2000, 8000)
	e := NewEchoCanceller(DefaultFilterLength, DefaultStepSize)
	e.Process(reference, reference)

	e.Reset()

	for i, w := range e.weights {
		if w != 0 {
			t.Fatalf("weight %d = %v after reset, want 0", i, w)
		}
	}
	for i, d := range e.delayLine {
		if d != 0 {
			t.Fatalf("delay line %d = %v after reset, want 0", i, d)
		}
	}
}

func TestSTFT_RoundTrip(t *testing.T) {
	// Analysis followed by synthesis should approximately reproduce the
	// interior of the signal (edges lose energy to the window taper).
	in := toFloat(makeTone(250, 0.5, 2048, 8000))

	s := newSTFT()
	frames, err := s.analyze(in)
	if err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	out := s.synthesize(frames, len(in))

	var maxErr float64
	for i := windowSize; i < len(in)-windowSize; i++ {
		if e := math.Abs(out[i] - in[i]); e > maxErr {
			maxErr = e
		}
	}
	if maxErr > 0.01 {
		t.Errorf("interior reconstruction error = %v, want < 0.01", maxErr)
	}
}
