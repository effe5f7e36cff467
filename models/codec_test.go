package models

import "testing"

// TestBlockHeaderRoundTrip ensures a header survives encode/decode intact.
func TestBlockHeaderRoundTrip(t *testing.T) {
	parents := []BlockId{HashData([]byte("p0")), HashData([]byte("p1"))}
	hdr := BlockHeader{
		Slot:           NewSlot(7, 1),
		Parents:        parents,
		CreatorPubKey:  []byte{0x01, 0x02, 0x03},
		OperationsRoot: HashData([]byte("ops")),
		Endorsements: []Endorsement{
			{
				Slot:          NewSlot(6, 0),
				EndorsedBlock: parents[0],
				Creator:       []byte{0xaa},
				Signature:     []byte{0xbb, 0xcc},
			},
		},
	}
	encoded := EncodeBlockHeader(hdr)
	decoded, err := DecodeBlockHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeBlockHeader: %v", err)
	}
	if !decoded.Slot.Equal(hdr.Slot) {
		t.Errorf("slot mismatch: got %v want %v", decoded.Slot, hdr.Slot)
	}
	if len(decoded.Parents) != len(hdr.Parents) {
		t.Fatalf("parents length: got %d want %d", len(decoded.Parents), len(hdr.Parents))
	}
	for i := range hdr.Parents {
		if decoded.Parents[i] != hdr.Parents[i] {
			t.Errorf("parent %d mismatch", i)
		}
	}
	if decoded.OperationsRoot != hdr.OperationsRoot {
		t.Error("operations root mismatch")
	}
	if len(decoded.Endorsements) != 1 || decoded.Endorsements[0].EndorsedBlock != parents[0] {
		t.Error("endorsement round-trip failed")
	}
}

// TestComputeOperationsRootDeterministic checks that the same operation
// set always yields the same root, and an empty set yields a fixed value.
func TestComputeOperationsRootDeterministic(t *testing.T) {
	ops := []Operation{{ID: HashData([]byte("a"))}, {ID: HashData([]byte("b"))}}
	r1 := ComputeOperationsRoot(ops)
	r2 := ComputeOperationsRoot(ops)
	if r1 != r2 {
		t.Error("ComputeOperationsRoot should be deterministic")
	}
	if ComputeOperationsRoot(nil).IsZero() {
		t.Error("empty operations root should not be the zero hash")
	}
}
