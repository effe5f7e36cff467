package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AddressKind distinguishes addresses controlled by a public key from
// addresses created by smart-contract execution.
type AddressKind byte

const (
	// AddressUser marks an address derived directly from a public key.
	AddressUser AddressKind = 0x00
	// AddressSC marks an address created by execution.Context.CreateNewSCAddress.
	AddressSC AddressKind = 0x01
)

// Address identifies an account: either a user wallet or a smart-contract
// instance. The Kind byte is carried alongside the hash so the two address
// spaces are distinguishable even though they are derived from the same
// underlying hash function (see DESIGN.md Open Question 1).
type Address struct {
	Kind AddressKind
	Hash Hash
}

// NewUserAddress derives a user address from an ed25519 public key.
func NewUserAddress(pubKey []byte) Address {
	return Address{Kind: AddressUser, Hash: HashData(pubKey)}
}

// NewSCAddress wraps a hash produced by the execution context's
// deterministic address-creation counter.
func NewSCAddress(h Hash) Address {
	return Address{Kind: AddressSC, Hash: h}
}

// String renders the address as "<kind-hex><hash-hex>", e.g. "00a1b2...".
func (a Address) String() string {
	return fmt.Sprintf("%02x%s", byte(a.Kind), a.Hash)
}

// Less provides a total order over addresses for deterministic iteration
// of ledger changes.
func (a Address) Less(other Address) bool {
	if a.Kind != other.Kind {
		return a.Kind < other.Kind
	}
	return a.Hash.Less(other.Hash)
}

// IsSC reports whether a was created by contract execution.
func (a Address) IsSC() bool {
	return a.Kind == AddressSC
}

// ParseAddress is the inverse of Address.String: a one-byte kind prefix
// followed by the hex-encoded hash.
func ParseAddress(s string) (Address, error) {
	if len(s) != 2+2*HashSize {
		return Address{}, fmt.Errorf("models: address %q has wrong length", s)
	}
	kindByte, err := hex.DecodeString(s[:2])
	if err != nil {
		return Address{}, fmt.Errorf("models: invalid address kind: %w", err)
	}
	h, err := HashFromHex(s[2:])
	if err != nil {
		return Address{}, fmt.Errorf("models: invalid address hash: %w", err)
	}
	kind := AddressKind(kindByte[0])
	if kind != AddressUser && kind != AddressSC {
		return Address{}, fmt.Errorf("models: unknown address kind %x", kindByte[0])
	}
	return Address{Kind: kind, Hash: h}, nil
}

// MarshalJSON renders the address in its canonical string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the canonical string form produced by MarshalJSON.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
