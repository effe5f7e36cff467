package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the width in bytes of a Hash.
const HashSize = 32

// Hash is a 256-bit blake2b digest.
type Hash [HashSize]byte

// HashData returns the blake2b-256 hash of data.
func HashData(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashFromBytes wraps an existing 32-byte digest.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("models: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex decodes a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("models: invalid hash hex: %w", err)
	}
	return HashFromBytes(b)
}

// Bytes returns the hash contents as a slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Less reports whether h sorts before other, for ordered iteration.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether h is the all-zero hash (used for genesis parents).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalJSON renders the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
