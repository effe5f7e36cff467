package consensus

import "math/bits"

// Xoshiro256pp is a from-scratch port of the Xoshiro256++ generator.
// No ecosystem Go package implements this exact algorithm; determinism
// across platforms requires full control over the generator's
// internals, so it is implemented directly rather than substituted with
// a different PRNG family.
type Xoshiro256pp struct {
	s [4]uint64
}

// NewXoshiro256pp seeds the generator from a 32-byte seed, interpreted as
// four little-endian uint64 words. A zero seed is remapped to a fixed
// non-zero state since an all-zero state only ever produces zeros.
func NewXoshiro256pp(seed [32]byte) *Xoshiro256pp {
	var s [4]uint64
	for i := 0; i < 4; i++ {
		for j := 0; j < 8; j++ {
			s[i] |= uint64(seed[i*8+j]) << (8 * j)
		}
	}
	if s == [4]uint64{} {
		s[0] = 0x9e3779b97f4a7c15
	}
	return &Xoshiro256pp{s: s}
}

// Next returns the next pseudo-random uint64 and advances the state.
func (x *Xoshiro256pp) Next() uint64 {
	s := &x.s
	result := bits.RotateLeft64(s[0]+s[3], 23) + s[0]

	t := s[1] << 17

	s[2] ^= s[0]
	s[3] ^= s[1]
	s[1] ^= s[2]
	s[0] ^= s[3]

	s[2] ^= t

	s[3] = bits.RotateLeft64(s[3], 45)

	return result
}

// Float64 returns a pseudo-random value in [0, 1), using the top 53 bits
// of a generated word for uniformity.
func (x *Xoshiro256pp) Float64() float64 {
	return float64(x.Next()>>11) / (1 << 53)
}
