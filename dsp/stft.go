package dsp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Short-time transform geometry shared by the conditioning stages.
const (
	windowSize = 256
	hopSize    = windowSize / 2
	numBins    = windowSize/2 + 1
)

// errChunkTooShort is returned when a chunk cannot fill a single
// analysis window. Callers treat it as "pass the audio through".
var errChunkTooShort = errors.New("chunk shorter than analysis window")

// stft performs short-time Fourier analysis and synthesis with a Hann
// window at 50% overlap. Not safe for concurrent use; each DSP stage
// owns its own instance.
type stft struct {
	fft    *fourier.FFT
	window []float64
}

func newSTFT() *stft {
	window := make([]float64, windowSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize)))
	}
	return &stft{
		fft:    fourier.NewFFT(windowSize),
		window: window,
	}
}

// analyze splits x into overlapping windowed frames and returns the
// spectrum of each frame (numBins coefficients per frame).
func (s *stft) analyze(x []float64) ([][]complex128, error) {
	if len(x) < windowSize {
		return nil, errChunkTooShort
	}

	numFrames := 1 + (len(x)-windowSize)/hopSize
	frames := make([][]complex128, numFrames)
	buf := make([]float64, windowSize)

	for f := 0; f < numFrames; f++ {
		start := f * hopSize
		for i := 0; i < windowSize; i++ {
			buf[i] = x[start+i] * s.window[i]
		}
		frames[f] = s.fft.Coefficients(make([]complex128, numBins), buf)
	}
	return frames, nil
}

// synthesize reconstructs a signal of length n from spectral frames by
// inverse transform and overlap-add. The Hann window at 50% overlap
// sums to unity, so no separate synthesis window is applied.
func (s *stft) synthesize(frames [][]complex128, n int) []float64 {
	out := make([]float64, n)
	seq := make([]float64, windowSize)

	for f, frame := range frames {
		s.fft.Sequence(seq, frame)
		start := f * hopSize
		for i := 0; i < windowSize; i++ {
			idx := start + i
			if idx >= n {
				break
			}
			// The forward/inverse pair is unnormalized; scale by 1/N.
			out[idx] += seq[i] / windowSize
		}
	}
	return out
}

// magnitudePhase decomposes a spectral frame.
func magnitudePhase(frame []complex128) (mag, phase []float64) {
	mag = make([]float64, len(frame))
	phase = make([]float64, len(frame))
	for i, c := range frame {
		mag[i] = math.Hypot(real(c), imag(c))
		phase[i] = math.Atan2(imag(c), real(c))
	}
	return mag, phase
}

// fromMagnitudePhase rebuilds a spectral frame from magnitude and phase.
func fromMagnitudePhase(mag, phase []float64) []complex128 {
	frame := make([]complex128, len(mag))
	for i := range mag {
		frame[i] = complex(mag[i]*math.Cos(phase[i]), mag[i]*math.Sin(phase[i]))
	}
	return frame
}

// toFloat converts PCM16 samples to the [-1, 1) range.
func toFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// toPCM16 converts float samples back to PCM16 with clipping.
func toPCM16(x []float64) []int16 {
	out := make([]int16, len(x))
	for i, v := range x {
		v *= 32768.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
