package checksum

import "testing"

func TestComputeEmpty(t *testing.T) {
	if got := Compute(nil); got != 0xFFFF {
		t.Errorf("Compute(nil) = 0x%04X, want 0xFFFF", got)
	}
}

func TestComputeOddLength(t *testing.T) {
	// Trailing odd byte is padded with a low zero byte.
	a := Compute([]byte{0x01, 0x02, 0x03})
	b := Compute([]byte{0x01, 0x02, 0x03, 0x00})
	if a != b {
		t.Errorf("odd-length padding mismatch: %04X != %04X", a, b)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	sum := Compute(data)
	if !Verify(data, sum) {
		t.Fatal("Verify should succeed against the checksum just computed")
	}
	if Verify(data, sum^0xFFFF) {
		t.Fatal("Verify should fail against a wrong checksum")
	}
}

func TestComputeDetectsBitFlip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	sum := Compute(data)
	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		if Compute(mutated) == sum {
			t.Errorf("single-bit flip at byte %d went undetected", i)
		}
	}
}
