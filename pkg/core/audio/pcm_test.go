package audio

import (
	"math"
	"testing"
)

func TestEncodeFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.99, -0.99, 1.0, -1.0}

	out := DecodePCM16(EncodeFloat32(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		diff := math.Abs(float64(out[i]) - float64(in[i]))
		if diff > 1.0/32768.0 {
			t.Errorf("sample %d: got %v, want %v within 1/32768", i, out[i], in[i])
		}
	}
}

func TestEncodeFloat32Clamps(t *testing.T) {
	pcm := EncodeFloat32([]float32{2.0, -2.0})

	hi := int16(pcm[0]) | int16(pcm[1])<<8
	lo := int16(pcm[2]) | int16(pcm[3])<<8
	if hi != 32767 {
		t.Errorf("positive overflow = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Errorf("negative overflow = %d, want -32768", lo)
	}
}

func TestEncodeFloat32Scaling(t *testing.T) {
	// Full-scale positive uses 32767, full-scale negative 32768.
	pcm := EncodeFloat32([]float32{1.0, -1.0})

	pos := int16(pcm[0]) | int16(pcm[1])<<8
	neg := int16(pcm[2]) | int16(pcm[3])<<8
	if pos != 32767 {
		t.Errorf("encoded 1.0 = %d, want 32767", pos)
	}
	if neg != -32768 {
		t.Errorf("encoded -1.0 = %d, want -32768", neg)
	}
}

func TestDecodePCM16IgnoresTrailingByte(t *testing.T) {
	out := DecodePCM16([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if got, want := out[0], float32(0x4000)/32768.0; got != want {
		t.Errorf("sample = %v, want %v", got, want)
	}
}

func TestMeanMagnitude(t *testing.T) {
	if got := MeanMagnitude(nil); got != 0 {
		t.Errorf("MeanMagnitude(nil) = %v, want 0", got)
	}

	// Alternating full-scale positive and silence averages to ~0.5.
	pcm := EncodeFloat32([]float32{1.0, 0, 1.0, 0})
	got := MeanMagnitude(pcm)
	if math.Abs(got-0.5) > 0.001 {
		t.Errorf("MeanMagnitude = %v, want ~0.5", got)
	}
}

func TestRMSEnergy(t *testing.T) {
	if got := RMSEnergy(nil); got != 0 {
		t.Errorf("RMSEnergy(nil) = %v, want 0", got)
	}

	pcm := EncodeFloat32([]float32{0.5, -0.5, 0.5, -0.5})
	got := RMSEnergy(pcm)
	if math.Abs(got-0.5) > 0.001 {
		t.Errorf("RMSEnergy = %v, want ~0.5", got)
	}
}
