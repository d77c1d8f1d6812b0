// Package cryptox computes content digests for captured audio.
package cryptox

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Checksum returns the hex BLAKE2b-256 digest of data. The offline queue uses
// it to recognise the same capture being enqueued twice.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
