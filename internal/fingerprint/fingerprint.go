// Package fingerprint computes content fingerprints for uploaded images.
// The hash is an equality oracle for duplicate detection, not a security
// boundary.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the dedup key for an image: the SHA-256 of the raw bytes
// plus the byte length. The size doubles as a cheap collision guard.
type Fingerprint struct {
	Hash string
	Size int64
}

// Compute hashes the entire byte buffer. Deterministic: identical bytes
// always produce identical output.
func Compute(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint{
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
	}
}
