package audio

import "fmt"

// Standard sample rates at the pipeline boundaries.
const (
	// SampleRateWire is the telephony wire rate (mu-law over media streams).
	SampleRateWire = 8000
	// SampleRateASR is the transcription engine's native input rate.
	SampleRateASR = 16000
)

// Resample converts PCM16 samples from one sample rate to another using
// linear interpolation. Output length scales with the rate ratio; equal
// rates return a copy of the input.
func Resample(input []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		out := make([]int16, len(input))
		copy(out, input)
		return out, nil
	}

	if len(input) == 0 {
		return []int16{}, nil
	}

	numOutput := int(float64(len(input)) * float64(toRate) / float64(fromRate))
	if numOutput == 0 {
		return []int16{}, nil
	}

	output := make([]int16, numOutput)
	ratio := float64(fromRate) / float64(toRate)

	for i := 0; i < numOutput; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(input)-1 {
			output[i] = input[len(input)-1]
			continue
		}
		s0 := float64(input[srcIdx])
		s1 := float64(input[srcIdx+1])
		output[i] = int16(s0 + frac*(s1-s0))
	}

	return output, nil
}

// ResampleBytes is Resample for little-endian PCM16 byte slices.
func ResampleBytes(input []byte, fromRate, toRate int) ([]byte, error) {
	if len(input)%BytesPerSample != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of %d bytes per sample",
			len(input), BytesPerSample)
	}
	out, err := Resample(BytesToSamples(input), fromRate, toRate)
	if err != nil {
		return nil, err
	}
	return SamplesToBytes(out), nil
}
