package types

import (
	"encoding/hex"
	"fmt"
	"math/bits"
)

// Fingerprint is a fixed-width binary perceptual hash, packed into 64-bit
// words. The zero value is an empty (invalid) fingerprint.
//
// All fingerprints in one index share the same bit width; the width is
// configured where the fingerprint is computed, not here.
type Fingerprint []uint64

// FingerprintBits is the default fingerprint width in bits (standard pHash).
const FingerprintBits = 64

// Bits returns the fingerprint width in bits.
func (f Fingerprint) Bits() int {
	return len(f) * 64
}

// Hamming returns the number of differing bits between two fingerprints.
// Both fingerprints must have the same width; extra words in the longer
// fingerprint are ignored.
func (f Fingerprint) Hamming(other Fingerprint) int {
	n := len(f)
	if len(other) < n {
		n = len(other)
	}
	dist := 0
	for i := 0; i < n; i++ {
		dist += bits.OnesCount64(f[i] ^ other[i])
	}
	return dist
}

// Equal reports whether two fingerprints are bit-identical.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// String returns the canonical lowercase hex encoding, big-endian per word.
// This is the form persisted to storage and used as a map key.
func (f Fingerprint) String() string {
	buf := make([]byte, 0, len(f)*16)
	for _, w := range f {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(w >> (56 - 8*i))
		}
		buf = append(buf, b[:]...)
	}
	return hex.EncodeToString(buf)
}

// ParseFingerprint decodes a hex-encoded fingerprint. The input length must
// be a multiple of 16 hex characters (whole 64-bit words).
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return nil, fmt.Errorf("empty fingerprint")
	}
	if len(s)%16 != 0 {
		return nil, fmt.Errorf("fingerprint length must be a multiple of 16 hex chars (got %d)", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint hex: %w", err)
	}
	fp := make(Fingerprint, len(raw)/8)
	for i := range fp {
		var w uint64
		for j := 0; j < 8; j++ {
			w = w<<8 | uint64(raw[i*8+j])
		}
		fp[i] = w
	}
	return fp, nil
}
