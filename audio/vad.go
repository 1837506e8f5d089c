package audio

import "sync"

// Default detector thresholds. The energy and zero-crossing values come
// from tuning against 8kHz telephone audio; treat them as starting
// points, not calibrated constants.
const (
	DefaultEnergyThreshold = 0.01
	DefaultZCRThreshold    = 0.1
	DefaultAggressiveness  = 3
	DefaultFrameMs         = 20

	// speechFrameRatio is the fraction of classified frames that must be
	// speech for the whole chunk to count as speech.
	speechFrameRatio = 0.3

	maxAggressiveness = 3
)

// Per-frame classifier thresholds. Higher aggressiveness demands more
// energy and less broadband content before a frame counts as speech.
const (
	frameEnergyBase = 0.008
	frameEnergyStep = 0.5
	frameZCRBase    = 0.35
	frameZCRStep    = 0.05
)

// classifierRates are the sample rates the frame classifier supports.
// Other rates bypass the frame tier entirely.
var classifierRates = map[int]bool{
	8000:  true,
	16000: true,
	32000: true,
	48000: true,
}

// DetectorParams configures the voice activity detector.
type DetectorParams struct {
	// EnergyThreshold is the minimum full-scale RMS for speech (default: 0.01).
	EnergyThreshold float64

	// ZCRThreshold is the maximum zero-crossing rate for speech (default: 0.1).
	// Rejects broadband noise that passes the energy check.
	ZCRThreshold float64

	// Aggressiveness sets the frame classifier strictness, 0 (lenient)
	// to 3 (strict). Default: 3.
	Aggressiveness int

	// FrameMs is the classifier frame duration: 10, 20, or 30 ms. Default: 20.
	FrameMs int
}

// DefaultDetectorParams returns sensible defaults for telephone audio.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		EnergyThreshold: DefaultEnergyThreshold,
		ZCRThreshold:    DefaultZCRThreshold,
		Aggressiveness:  DefaultAggressiveness,
		FrameMs:         DefaultFrameMs,
	}
}

// Detector classifies audio chunks as speech or non-speech using three
// tiers of increasing cost: an RMS energy gate, a zero-crossing-rate
// gate, and a frame-level classifier. Each tier short-circuits to "not
// speech" on failure. Safe for concurrent use.
type Detector struct {
	mu     sync.RWMutex
	params DetectorParams
}

// NewDetector creates a Detector. Out-of-range parameters fall back to
// their defaults.
func NewDetector(params DetectorParams) *Detector {
	if params.EnergyThreshold <= 0 {
		params.EnergyThreshold = DefaultEnergyThreshold
	}
	if params.ZCRThreshold <= 0 {
		params.ZCRThreshold = DefaultZCRThreshold
	}
	if params.Aggressiveness < 0 || params.Aggressiveness > maxAggressiveness {
		params.Aggressiveness = DefaultAggressiveness
	}
	switch params.FrameMs {
	case 10, 20, 30:
	default:
		params.FrameMs = DefaultFrameMs
	}
	return &Detector{params: params}
}

// IsSpeech reports whether the chunk contains speech. Empty input is
// never speech (fail closed).
func (d *Detector) IsSpeech(samples []int16, sampleRate int) bool {
	if len(samples) == 0 || sampleRate <= 0 {
		return false
	}

	d.mu.RLock()
	params := d.params
	d.mu.RUnlock()

	// Tier 1: energy gate.
	if RMS(samples) <= params.EnergyThreshold {
		return false
	}

	// Tier 2: zero-crossing gate.
	if ZeroCrossingRate(samples) >= params.ZCRThreshold {
		return false
	}

	// Tier 3: frame-level classifier.
	return d.classifyFrames(samples, sampleRate, params)
}

// SetAggressiveness reconfigures the frame classifier strictness (0-3).
// Out-of-range levels are ignored.
func (d *Detector) SetAggressiveness(level int) {
	if level < 0 || level > maxAggressiveness {
		return
	}
	d.mu.Lock()
	d.params.Aggressiveness = level
	d.mu.Unlock()
}

// Aggressiveness returns the current frame classifier strictness.
func (d *Detector) Aggressiveness() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.params.Aggressiveness
}

// classifyFrames splits the chunk into fixed-duration frames, classifies
// each independently, and declares speech when the speech-frame ratio
// exceeds the threshold. Unsupported sample rates bypass this tier.
func (d *Detector) classifyFrames(samples []int16, sampleRate int, params DetectorParams) bool {
	if !classifierRates[sampleRate] {
		return true
	}

	frameSize := sampleRate * params.FrameMs / 1000
	if frameSize == 0 || len(samples) < frameSize {
		return true
	}

	energyFloor := frameEnergyBase * (1 + float64(params.Aggressiveness)*frameEnergyStep)
	zcrCeil := frameZCRBase - float64(params.Aggressiveness)*frameZCRStep

	speechFrames := 0
	totalFrames := 0
	for i := 0; i+frameSize <= len(samples); i += frameSize {
		frame := samples[i : i+frameSize]
		if RMS(frame) > energyFloor && ZeroCrossingRate(frame) < zcrCeil {
			speechFrames++
		}
		totalFrames++
	}

	if totalFrames == 0 {
		return false
	}
	return float64(speechFrames)/float64(totalFrames) > speechFrameRatio
}
