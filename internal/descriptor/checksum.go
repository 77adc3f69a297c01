package descriptor

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Checksum computes the SHA-256 of the weight and bias tables.
//
// Values are hashed as little-endian IEEE-754 bits, weights first, so the
// digest does not depend on how a backend formats float literals.
func Checksum(weights, biases []float32) string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range weights {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	// Separator so moving a value between tables changes the digest.
	binary.LittleEndian.PutUint32(buf[:], uint32(len(weights))) //nolint:gosec // Bounded by MaxTableEntries.
	h.Write(buf[:])
	for _, v := range biases {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum returns the digest of the model's tables.
func (m *Model) Checksum() string {
	return Checksum(m.weights, m.biases)
}

// VerifyChecksum reports ErrChecksumMismatch when expected does not match the
// digest of the model's tables.
func (m *Model) VerifyChecksum(expected string) error {
	if got := m.Checksum(); got != expected {
		return &ValidationError{Type: TypeChecksumMismatch, Layer: -1, Details: "declared " + expected + ", computed " + got}
	}
	return nil
}
