package audio

import (
	"encoding/binary"
	"math"
)

const (
	// BytesPerSample is the width of one 16-bit PCM sample.
	BytesPerSample = 2
	// MaxAmplitude is the full-scale amplitude for 16-bit signed audio.
	MaxAmplitude = 32768.0
)

// BytesToSamples converts little-endian PCM16 bytes to samples.
// A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	n := len(data) / BytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples
}

// SamplesToBytes converts samples to little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		//nolint:gosec // Safe PCM16 conversion
		binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
	}
	return data
}

// RMS computes the root-mean-square amplitude of the samples,
// normalized to full scale (0.0-1.0).
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		normalized := float64(s) / MaxAmplitude
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose
// signs differ. Broadband noise has a high rate; voiced speech is low.
func ZeroCrossingRate(samples []int16) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	prev := signOf(samples[0])
	for _, s := range samples[1:] {
		cur := signOf(s)
		if cur != prev {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(len(samples))
}

// signOf treats zero as negative so a run of silence does not register
// as alternating crossings.
func signOf(s int16) int {
	if s > 0 {
		return 1
	}
	return -1
}

// Normalize scales samples so the peak reaches targetLevel of full scale
// (0.0-1.0), clipping to the int16 range. Silent input is returned as-is.
func Normalize(samples []int16, targetLevel float64) []int16 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}

	scale := targetLevel * (MaxAmplitude - 1) / peak
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * scale
		switch {
		case v > MaxAmplitude-1:
			v = MaxAmplitude - 1
		case v < -MaxAmplitude:
			v = -MaxAmplitude
		}
		out[i] = int16(v)
	}
	return out
}

// Chunk splits PCM16 bytes into fixed-duration chunks at the given rate.
// The final chunk may be shorter.
func Chunk(data []byte, chunkMs, sampleRate int) [][]byte {
	if chunkMs <= 0 || sampleRate <= 0 {
		return nil
	}
	chunkBytes := sampleRate * chunkMs / 1000 * BytesPerSample
	if chunkBytes == 0 {
		return nil
	}

	var chunks [][]byte
	for i := 0; i < len(data); i += chunkBytes {
		end := i + chunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}
