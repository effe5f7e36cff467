package models

import "testing"

// TestParseAmountValid checks that well-formed decimal strings parse
// exactly, including fractional values at the maximum precision.
func TestParseAmountValid(t *testing.T) {
	cases := []struct {
		in  string
		raw uint64
	}{
		{"0", 0},
		{"42", 42 * AmountDecimalFactor},
		{"11.1", 11_100_000_000},
		{"11.111", 11_111_000_000},
		{"0.000000001", 1},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", c.in, err)
		}
		if got.Raw() != c.raw {
			t.Errorf("ParseAmount(%q): got raw %d want %d", c.in, got.Raw(), c.raw)
		}
	}
}

// TestParseAmountInvalid covers rejected input: negative, overprecise,
// scientific notation, and malformed.
func TestParseAmountInvalid(t *testing.T) {
	cases := []string{
		"-11.1",
		"abc",
		"11.1111111111111111111111",
		"",
		"1e2",
		"1.5e-3",
		"1E10",
	}
	for _, in := range cases {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q): expected error, got nil", in)
		}
	}
}

// TestAmountString ensures round-trip formatting matches the decimal
// form the value was parsed from.
func TestAmountString(t *testing.T) {
	a, err := ParseAmount("11.111")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.String(); got != "11.111" {
		t.Errorf("String(): got %q want %q", got, "11.111")
	}
	if got := ZeroAmount.String(); got != "0" {
		t.Errorf("ZeroAmount.String(): got %q want %q", got, "0")
	}
}

// TestAmountCheckedArithmetic verifies overflow/underflow detection.
func TestAmountCheckedArithmetic(t *testing.T) {
	a := AmountFromRaw(42)
	b := AmountFromRaw(7)
	sum, ok := a.CheckedAdd(b)
	if !ok || sum.Raw() != 49 {
		t.Errorf("CheckedAdd: got (%v, %v) want (49, true)", sum.Raw(), ok)
	}
	diff, ok := a.CheckedSub(b)
	if !ok || diff.Raw() != 35 {
		t.Errorf("CheckedSub: got (%v, %v) want (35, true)", diff.Raw(), ok)
	}
	if _, ok := b.CheckedSub(a); ok {
		t.Error("CheckedSub should fail on underflow")
	}
	max := AmountFromRaw(^uint64(0))
	if _, ok := max.CheckedAdd(AmountFromRaw(1)); ok {
		t.Error("CheckedAdd should fail on overflow")
	}
	if got := max.SaturatingAdd(AmountFromRaw(1)); got.Raw() != max.Raw() {
		t.Errorf("SaturatingAdd should clamp to max, got %d", got.Raw())
	}
	if got := AmountFromRaw(0).SaturatingSub(AmountFromRaw(1)); !got.IsZero() {
		t.Errorf("SaturatingSub should clamp to zero, got %d", got.Raw())
	}
}
