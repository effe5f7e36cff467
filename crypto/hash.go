package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash returns the blake2b-256 hash of data as a lowercase hex string.
// Domain objects (blocks, addresses, ledger entries) hash themselves via
// models.HashData instead; this helper exists for ancillary uses like
// key-derived identifiers that only need the digest, not the models.Hash
// type.
func Hash(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw blake2b-256 digest of data.
func HashBytes(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}
