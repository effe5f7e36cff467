package config

import (
	"fmt"

	"github.com/tolchain/corechain/consensus"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// genesisCreator is deterministic placeholder creator material for the
// per-thread genesis blocks: they carry no parents and no operations, so
// every node building from the same Config derives identical ids.
var genesisCreator = make([]byte, 32)

// GenesisBlocks builds one genesis block per thread: slot (0, thread),
// no parents, no operations. This matches consensus.NewGraph's
// expectation of exactly cfg.ThreadCount genesis block ids.
func GenesisBlocks(cfg *Config) []*models.Block {
	blocks := make([]*models.Block, cfg.ThreadCount)
	for t := uint8(0); t < cfg.ThreadCount; t++ {
		blocks[t] = models.NewBlock(models.NewSlot(0, t), nil, genesisCreator, nil)
	}
	return blocks
}

// GenesisBlockIds returns the ids of the per-thread genesis blocks, in
// thread order, ready to pass to consensus.NewGraph.
func GenesisBlockIds(cfg *Config) []models.BlockId {
	blocks := GenesisBlocks(cfg)
	ids := make([]models.BlockId, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ComputeId()
	}
	return ids
}

// RollCounts parses the genesis roll allocation into the address-keyed
// map the PoS selector consumes.
func (g *GenesisConfig) RollCounts() (consensus.RollCounts, error) {
	rolls := make(consensus.RollCounts, len(g.InitialRolls))
	for s, count := range g.InitialRolls {
		addr, err := models.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("genesis: initial_rolls address %q: %w", s, err)
		}
		rolls[addr] = count
	}
	return rolls, nil
}

// SeedFinalState applies the genesis balance allocation to fs as though
// it were the ExecutionOutput of slot (0, 0), so the usual ApplyOutput
// write path (ledger fold, snapshot flush) runs for genesis the same
// way it runs for every later finalized slot.
func (g *GenesisConfig) SeedFinalState(fs *finalstate.FinalState) error {
	changes := ledger.NewChanges()
	for s, raw := range g.Balances {
		addr, err := models.ParseAddress(s)
		if err != nil {
			return fmt.Errorf("genesis: balances address %q: %w", s, err)
		}
		changes.Set(addr, ledger.NewEntry(models.AmountFromRaw(raw)))
	}
	out := execution.ExecutionOutput{
		Slot:    models.NewSlot(0, 0),
		Changes: execution.StateChanges{Ledger: changes},
	}
	return fs.ApplyOutput(out)
}
