package audio

import "math"

// EncodeFloat32 converts floating-point samples to 16-bit signed
// little-endian PCM. Positive samples are scaled by 32767 and negative
// samples by 32768, then hard-clamped to the representable range.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		var v int32
		if f >= 0 {
			v = int32(f * 32767)
		} else {
			v = int32(f * 32768)
		}
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		s := int16(v)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodePCM16 converts 16-bit signed little-endian PCM to floating-point
// samples normalized by 32768. A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// MeanMagnitude returns the mean absolute amplitude of the PCM data,
// normalized to 0..1. It is the coarse volume level surfaced to the UI;
// the computation must never block the capture path.
func MeanMagnitude(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		sum += math.Abs(float64(sample))
	}
	return sum / float64(samples) / 32768.0
}

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM. Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
