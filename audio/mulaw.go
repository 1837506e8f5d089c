package audio

// G.711 mu-law codec for the telephony wire format. Twilio media streams
// carry 8-bit mu-law at 8kHz; internal processing uses 16-bit linear PCM.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// mulawDecodeTable maps each mu-law byte to its linear PCM16 value.
var mulawDecodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^uint8(i)
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		magnitude := ((int32(mantissa) << 3) + mulawBias) << exponent
		magnitude -= mulawBias
		if u&0x80 != 0 {
			magnitude = -magnitude
		}
		mulawDecodeTable[i] = int16(magnitude)
	}
}

// DecodeMulawSample expands a single mu-law byte to a PCM16 sample.
func DecodeMulawSample(b byte) int16 {
	return mulawDecodeTable[b]
}

// EncodeMulawSample compresses a PCM16 sample to a mu-law byte.
func EncodeMulawSample(sample int16) byte {
	v := int32(sample)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F

	return ^(sign | exponent<<4 | mantissa)
}

// DecodeMulaw expands mu-law bytes to PCM16 samples.
func DecodeMulaw(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = mulawDecodeTable[b]
	}
	return samples
}

// EncodeMulaw compresses PCM16 samples to mu-law bytes.
func EncodeMulaw(samples []int16) []byte {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = EncodeMulawSample(s)
	}
	return data
}
