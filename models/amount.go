package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// AmountDecimalFactor is the number of raw units per whole coin (9 decimal
// digits of precision).
const AmountDecimalFactor = 1_000_000_000

// Amount is a fixed-point quantity of coins stored as a raw u64 with
// AmountDecimalFactor as the implicit denominator. All arithmetic is
// checked or saturating; there is no way to construct a negative Amount.
type Amount struct {
	raw uint64
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// AmountFromRaw wraps a raw u64 value directly, bypassing the decimal
// factor. Prefer ParseAmount for user-supplied values.
func AmountFromRaw(raw uint64) Amount {
	return Amount{raw: raw}
}

// Raw returns the underlying raw u64 representation.
func (a Amount) Raw() uint64 {
	return a.raw
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.raw == 0
}

// CheckedAdd adds two amounts, returning ok=false on overflow.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	sum := a.raw + b.raw
	if sum < a.raw {
		return Amount{}, false
	}
	return Amount{raw: sum}, true
}

// CheckedSub subtracts b from a, returning ok=false on underflow.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	if b.raw > a.raw {
		return Amount{}, false
	}
	return Amount{raw: a.raw - b.raw}, true
}

// CheckedMulUint64 multiplies a by the scalar n, returning ok=false on
// overflow. Used for fixed-price-per-unit computations like roll cost.
func (a Amount) CheckedMulUint64(n uint64) (Amount, bool) {
	if a.raw == 0 || n == 0 {
		return Amount{}, true
	}
	product := a.raw * n
	if product/n != a.raw {
		return Amount{}, false
	}
	return Amount{raw: product}, true
}

// SaturatingAdd adds two amounts, clamping to the maximum u64 on overflow.
func (a Amount) SaturatingAdd(b Amount) Amount {
	sum, ok := a.CheckedAdd(b)
	if !ok {
		return Amount{raw: ^uint64(0)}
	}
	return sum
}

// SaturatingSub subtracts b from a, clamping to zero on underflow.
func (a Amount) SaturatingSub(b Amount) Amount {
	diff, ok := a.CheckedSub(b)
	if !ok {
		return Amount{}
	}
	return diff
}

// Cmp compares two amounts: -1, 0, 1.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.raw < b.raw:
		return -1
	case a.raw > b.raw:
		return 1
	default:
		return 0
	}
}

// String renders the amount in decimal form, e.g. "11.111".
func (a Amount) String() string {
	whole := a.raw / AmountDecimalFactor
	frac := a.raw % AmountDecimalFactor
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fracStr := fmt.Sprintf("%09d", frac)
	fracStr = strings.TrimRight(fracStr, "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

// ParseAmount parses a plain decimal string into an Amount. It rejects
// negative values, scientific notation, and values more precise than
// 1/AmountDecimalFactor.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("models: empty amount string")
	}
	if strings.ContainsAny(s, "eEpP") {
		return Amount{}, fmt.Errorf("models: amount %q must be plain decimal, not scientific notation", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("models: invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return Amount{}, fmt.Errorf("models: amounts cannot be strictly negative")
	}
	factor := new(big.Rat).SetInt64(AmountDecimalFactor)
	scaled := new(big.Rat).Mul(r, factor)
	if !scaled.IsInt() {
		return Amount{}, fmt.Errorf("models: amounts cannot be more precise than 1/%d", AmountDecimalFactor)
	}
	raw := scaled.Num()
	maxU64 := new(big.Int).SetUint64(^uint64(0))
	if raw.Cmp(maxU64) > 0 {
		return Amount{}, fmt.Errorf("models: amount is too large to be represented as u64")
	}
	return Amount{raw: raw.Uint64()}, nil
}

// MarshalJSON renders the amount in its decimal string form so that
// clients never lose precision to a JSON number's float64 round-trip.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the decimal string form produced by MarshalJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
