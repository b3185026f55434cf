// Package digest computes the content digests used throughout the
// core: SHA-256 is the addressing digest, every chunk and manifest
// identity derives from it. A secondary BLAKE3 digest is offered for
// callers that want a fast non-addressing checksum (e.g. transfer
// integrity spot checks); it never participates in addressing or
// routing.
package digest

import (
	"crypto/sha256"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Size is the byte length of a SHA-256 digest.
const Size = sha256.Size

// SHA256 returns the lowercase hex-encoded SHA-256 digest of data,
// the canonical content address used for chunks, manifests, and
// ledger entries.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Bytes returns the raw 32-byte SHA-256 digest of data.
func SHA256Bytes(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

// Valid reports whether s looks like a well-formed digest: 64
// lowercase hex characters.
func Valid(s string) bool {
	if len(s) != Size*2 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// BLAKE3 returns a lowercase hex-encoded BLAKE3-256 digest of data.
// This is an auxiliary, non-addressing checksum only.
func BLAKE3(data []byte) string {
	sum := BLAKE3Bytes(data)
	return hex.EncodeToString(sum[:])
}

// BLAKE3Bytes returns the raw 32-byte BLAKE3-256 digest of data, for
// callers that need the bytes directly rather than a hex string (the
// PoR fast-path proof hashes into a fixed-size value, not a display
// string).
func BLAKE3Bytes(data []byte) [Size]byte {
	return blake3.Sum256(data)
}
