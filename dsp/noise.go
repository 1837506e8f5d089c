package dsp

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Noise reducer defaults.
const (
	DefaultReductionDB       = 20.0
	DefaultCalibrationChunks = 20

	// noiseProfileAlpha is the exponential-moving-average smoothing
	// factor for the running noise profile.
	noiseProfileAlpha = 0.1

	// gateAttenuation scales bins below the gate threshold. Attenuating
	// instead of zeroing avoids audible musical-noise artifacts.
	gateAttenuation = 0.1

	// fallbackPercentile is used to derive a gate threshold from the
	// chunk itself before a noise profile exists.
	fallbackPercentile = 0.2

	// comfortNoiseSigma is the standard deviation of the low-level
	// noise mixed back in so the line never goes perceptually dead.
	comfortNoiseSigma = 1e-4
)

// NoiseReducer suppresses stationary background noise with spectral
// gating. A running noise-profile spectrum is learned from the first
// chunks of a call and used to derive per-bin gate thresholds. Safe for
// concurrent use.
type NoiseReducer struct {
	mu                sync.Mutex
	reductionDB       float64
	calibrationChunks int
	chunksSeen        int
	profile           []float64
	stft              *stft
	rng               *rand.Rand
}

// NewNoiseReducer creates a NoiseReducer. Non-positive arguments fall
// back to the defaults.
func NewNoiseReducer(reductionDB float64, calibrationChunks int) *NoiseReducer {
	if reductionDB <= 0 {
		reductionDB = DefaultReductionDB
	}
	if calibrationChunks <= 0 {
		calibrationChunks = DefaultCalibrationChunks
	}
	return &NoiseReducer{
		reductionDB:       reductionDB,
		calibrationChunks: calibrationChunks,
		stft:              newSTFT(),
		rng:               rand.New(rand.NewSource(rand.Int63())), // #nosec G404 -- comfort noise, not crypto
	}
}

// Process returns input with background noise attenuated. Any
// processing failure returns the input unmodified.
func (n *NoiseReducer) Process(input []int16) []int16 {
	if len(input) == 0 {
		return input
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	in := toFloat(input)
	frames, err := n.stft.analyze(in)
	if err != nil {
		return input
	}

	if n.chunksSeen < n.calibrationChunks {
		n.updateProfile(frames)
		n.chunksSeen++
	}

	threshold := n.gateThreshold(frames)

	gated := make([][]complex128, len(frames))
	for f, frame := range frames {
		mag, phase := magnitudePhase(frame)
		for i := range mag {
			if mag[i] < threshold[i] {
				mag[i] *= gateAttenuation
			}
		}
		gated[f] = fromMagnitudePhase(mag, phase)
	}

	out := n.stft.synthesize(gated, len(in))
	for i := range out {
		out[i] += n.rng.NormFloat64() * comfortNoiseSigma
	}
	return toPCM16(out)
}

// Reset discards the noise profile and calibration progress, for reuse
// between calls.
func (n *NoiseReducer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.profile = nil
	n.chunksSeen = 0
}

// CalibrationChunksSeen returns how many chunks have contributed to the
// noise profile so far.
func (n *NoiseReducer) CalibrationChunksSeen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chunksSeen
}

// updateProfile folds the chunk's mean per-bin magnitude into the
// running profile by exponential moving average.
func (n *NoiseReducer) updateProfile(frames [][]complex128) {
	chunkMean := make([]float64, numBins)
	for _, frame := range frames {
		for i, c := range frame {
			chunkMean[i] += math.Hypot(real(c), imag(c))
		}
	}
	for i := range chunkMean {
		chunkMean[i] /= float64(len(frames))
	}

	if n.profile == nil {
		n.profile = chunkMean
		return
	}
	for i := range n.profile {
		n.profile[i] = noiseProfileAlpha*chunkMean[i] + (1-noiseProfileAlpha)*n.profile[i]
	}
}

// gateThreshold derives per-bin thresholds from the noise profile
// scaled by the suppression level, or from the chunk's own magnitude
// distribution when no profile exists yet.
func (n *NoiseReducer) gateThreshold(frames [][]complex128) []float64 {
	threshold := make([]float64, numBins)

	if n.profile != nil {
		scale := math.Pow(10, n.reductionDB/20)
		for i, p := range n.profile {
			threshold[i] = p * scale
		}
		return threshold
	}

	// No profile yet: 20th percentile of all magnitudes in the chunk.
	all := make([]float64, 0, len(frames)*numBins)
	for _, frame := range frames {
		for _, c := range frame {
			all = append(all, math.Hypot(real(c), imag(c)))
		}
	}
	sort.Float64s(all)
	p := all[int(float64(len(all)-1)*fallbackPercentile)]
	for i := range threshold {
		threshold[i] = p
	}
	return threshold
}
