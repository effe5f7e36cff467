package network

import "github.com/tolchain/corechain/models"

// BlockReceived is emitted when a full block arrives from a peer, either
// because it was propagated unsolicited or in answer to our own Ask.
type BlockReceived struct {
	ID    models.BlockId
	Block *models.Block
}

// DependencyQuery is emitted when a peer asks us for a block id that our
// local BlockProvider does not have, so the consumer (the consensus
// wiring) knows some part of the network considers that id a dependency
// worth asking around for.
type DependencyQuery struct {
	ID models.BlockId
}

// BlockProvider answers local lookups for a block this node already
// holds, used to serve incoming Ask requests without coupling network to
// the block graph directly.
type BlockProvider interface {
	GetBlock(id models.BlockId) (*models.Block, bool)
}

// ProtocolController is the collaborator interface the consensus actor
// uses to exchange blocks with the rest of the network: BlockReceived and
// DependencyQuery flow up to the consumer, Propagate and Ask flow down to
// peers.
type ProtocolController interface {
	BlockReceived() <-chan BlockReceived
	DependencyQueries() <-chan DependencyQuery
	Propagate(id models.BlockId, block *models.Block) error
	Ask(id models.BlockId) error
}
