package consensus

import (
	"fmt"
	"sort"

	"github.com/tolchain/corechain/models"
)

// RollCounts maps each staking address to the number of rolls it owns.
// One roll is one ticket in the weighted producer/endorser draw.
type RollCounts map[models.Address]uint64

// Selector draws block producers and endorsers for a slot from a rolling
// entropy seed and a roll-count snapshot, deterministically and
// identically across platforms.
type Selector struct {
	entropy    [32]byte
	rollCounts RollCounts
	addrs      []models.Address // stable iteration order for the cumulative distribution
	cumulative []uint64
	total      uint64
}

// NewSelector builds a Selector from a cycle's entropy accumulator and
// roll-count snapshot.
func NewSelector(entropy [32]byte, rolls RollCounts) *Selector {
	s := &Selector{entropy: entropy, rollCounts: rolls}
	s.addrs = make([]models.Address, 0, len(rolls))
	for a := range rolls {
		s.addrs = append(s.addrs, a)
	}
	sort.Slice(s.addrs, func(i, j int) bool { return s.addrs[i].Less(s.addrs[j]) })
	s.cumulative = make([]uint64, len(s.addrs))
	var acc uint64
	for i, a := range s.addrs {
		acc += rolls[a]
		s.cumulative[i] = acc
	}
	s.total = acc
	return s
}

// Draw selects the block producer and n endorsers for slot, weighted by
// roll count. Returns an error if no rolls are registered.
func (s *Selector) Draw(slot models.Slot, numEndorsers int) (producer models.Address, endorsers []models.Address, err error) {
	if s.total == 0 {
		return models.Address{}, nil, fmt.Errorf("consensus: no rolls registered for selection")
	}
	rng := NewXoshiro256pp(seedFor(s.entropy, slot))

	producer = s.drawOne(rng)
	endorsers = make([]models.Address, numEndorsers)
	for i := range endorsers {
		endorsers[i] = s.drawOne(rng)
	}
	return producer, endorsers, nil
}

// drawOne performs a single weighted draw over the cumulative distribution.
func (s *Selector) drawOne(rng *Xoshiro256pp) models.Address {
	target := rng.Next() % s.total
	idx := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > target })
	if idx == len(s.cumulative) {
		idx = len(s.cumulative) - 1
	}
	return s.addrs[idx]
}

// seedFor derives the per-slot RNG seed from the cycle entropy.
func seedFor(entropy [32]byte, slot models.Slot) [32]byte {
	material := append(append([]byte{}, entropy[:]...), slot.ToBytesKey()...)
	return [32]byte(models.HashData(material))
}
