package dsp

import (
	"math"
	"sort"
	"sync"
)

// Echo canceller defaults.
const (
	DefaultFilterLength = 256
	DefaultStepSize     = 0.1

	// nlmsEpsilon stabilizes the NLMS weight update when the reference
	// delay line carries near-zero energy (silence).
	nlmsEpsilon = 1e-6
)

// EchoCanceller removes acoustic echo from caller audio. With a
// reference signal (the audio played to the caller) it runs a
// Normalized-LMS adaptive filter; without one it falls back to spectral
// subtraction against a per-chunk noise-floor estimate.
//
// Filter state adapts across chunks within a call; Reset clears it
// between calls. Safe for concurrent use.
type EchoCanceller struct {
	mu        sync.Mutex
	stepSize  float64
	weights   []float64
	delayLine []float64
	stft      *stft
}

// NewEchoCanceller creates an EchoCanceller. Non-positive arguments
// fall back to the defaults.
func NewEchoCanceller(filterLength int, stepSize float64) *EchoCanceller {
	if filterLength <= 0 {
		filterLength = DefaultFilterLength
	}
	if stepSize <= 0 {
		stepSize = DefaultStepSize
	}
	return &EchoCanceller{
		stepSize:  stepSize,
		weights:   make([]float64, filterLength),
		delayLine: make([]float64, filterLength),
		stft:      newSTFT(),
	}
}

// Process returns input with echo removed. reference may be nil. Any
// processing failure returns the input unmodified.
func (e *EchoCanceller) Process(input, reference []int16) []int16 {
	if len(input) == 0 {
		return input
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if reference != nil {
		return e.nlmsFilter(input, reference)
	}
	return e.spectralSubtract(input)
}

// Reset zeroes the adaptive filter, for reuse between calls or after a
// configuration change.
func (e *EchoCanceller) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.weights {
		e.weights[i] = 0
		e.delayLine[i] = 0
	}
}

// nlmsFilter runs the sample-by-sample Normalized-LMS update. The
// prediction error is the cleaned output.
func (e *EchoCanceller) nlmsFilter(input, reference []int16) []int16 {
	in := toFloat(input)
	ref := toFloat(reference)
	out := make([]float64, len(in))

	for i := range in {
		// Shift the newest reference sample into the delay line.
		copy(e.delayLine[1:], e.delayLine[:len(e.delayLine)-1])
		if i < len(ref) {
			e.delayLine[0] = ref[i]
		} else {
			e.delayLine[0] = 0
		}

		var echoEstimate, norm float64
		for j, w := range e.weights {
			echoEstimate += w * e.delayLine[j]
			norm += e.delayLine[j] * e.delayLine[j]
		}

		err := in[i] - echoEstimate
		out[i] = err

		step := e.stepSize * err / (norm + nlmsEpsilon)
		for j := range e.weights {
			e.weights[j] += step * e.delayLine[j]
		}
	}

	return toPCM16(out)
}

// spectralSubtract estimates a noise floor as the per-bin median
// magnitude across the chunk's spectral frames and subtracts it,
// preserving phase.
func (e *EchoCanceller) spectralSubtract(input []int16) []int16 {
	in := toFloat(input)

	frames, err := e.stft.analyze(in)
	if err != nil {
		return input
	}

	floor := perBinMedian(frames)

	cleaned := make([][]complex128, len(frames))
	for f, frame := range frames {
		mag, phase := magnitudePhase(frame)
		for i := range mag {
			mag[i] -= floor[i]
			if mag[i] < 0 {
				mag[i] = 0
			}
		}
		cleaned[f] = fromMagnitudePhase(mag, phase)
	}

	return toPCM16(e.stft.synthesize(cleaned, len(in)))
}

// perBinMedian computes the median magnitude of each frequency bin
// across all frames.
func perBinMedian(frames [][]complex128) []float64 {
	median := make([]float64, numBins)
	column := make([]float64, len(frames))

	for bin := 0; bin < numBins; bin++ {
		for f, frame := range frames {
			c := frame[bin]
			column[f] = math.Hypot(real(c), imag(c))
		}
		sort.Float64s(column)
		mid := len(column) / 2
		if len(column)%2 == 0 {
			median[bin] = (column[mid-1] + column[mid]) / 2
		} else {
			median[bin] = column[mid]
		}
	}
	return median
}
