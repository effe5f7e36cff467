package models

// BlockId identifies a block: the hash of its encoded header (see
// Block.ComputeId).
type BlockId = Hash

// Endorsement is a lightweight attestation by a selected endorser that a
// given parent block is the expected tip of its thread at creation time.
type Endorsement struct {
	Slot         Slot
	EndorsedBlock BlockId
	Creator      []byte // ed25519 public key
	Signature    []byte
}

// BlockHeader carries everything that is hashed and signed, excluding the
// operation list itself (which is committed to via OperationsRoot).
type BlockHeader struct {
	Slot            Slot
	Parents         []BlockId // exactly one entry per thread, ordered by thread index
	CreatorPubKey   []byte
	OperationsRoot  Hash
	Endorsements    []Endorsement
}

// Block is a candidate unit of the block graph: a header plus the
// operations it carries and the creator's signature over the header.
type Block struct {
	Header     BlockHeader
	Operations []Operation
	Signature  []byte
}

// ComputeId returns the block's identity: the hash of its encoded header.
func (b *Block) ComputeId() BlockId {
	return HashData(EncodeBlockHeader(b.Header))
}

// NewBlock builds an unsigned block whose OperationsRoot is derived from ops.
func NewBlock(slot Slot, parents []BlockId, creatorPubKey []byte, ops []Operation) *Block {
	hdr := BlockHeader{
		Slot:           slot,
		Parents:        append([]BlockId(nil), parents...),
		CreatorPubKey:  append([]byte(nil), creatorPubKey...),
		OperationsRoot: ComputeOperationsRoot(ops),
	}
	return &Block{Header: hdr, Operations: ops}
}
