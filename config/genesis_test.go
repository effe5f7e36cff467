package config

import (
	"testing"

	"github.com/tolchain/corechain/crypto"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/internal/testutil"
	"github.com/tolchain/corechain/models"
)

func TestGenesisBlockIdsMatchThreadCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 4
	ids := GenesisBlockIds(cfg)
	if len(ids) != 4 {
		t.Fatalf("expected 4 genesis block ids, got %d", len(ids))
	}
	seen := map[models.BlockId]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate genesis block id %s across threads", id)
		}
		seen[id] = true
	}
}

func TestGenesisBlockIdsAreDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := GenesisBlockIds(cfg)
	b := GenesisBlockIds(cfg)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("genesis block id for thread %d is not deterministic", i)
		}
	}
}

func TestRollCountsParsesAddresses(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	addr := models.NewUserAddress(pub)

	g := GenesisConfig{InitialRolls: map[string]uint64{addr.String(): 5}}
	rolls, err := g.RollCounts()
	if err != nil {
		t.Fatalf("RollCounts: %v", err)
	}
	if rolls[addr] != 5 {
		t.Fatalf("expected 5 rolls for %s, got %d", addr, rolls[addr])
	}
}

func TestSeedFinalStateCreditsBalances(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	addr := models.NewUserAddress(pub)

	fs := finalstate.New(testutil.NewMemDB(), nil, 1024, 0)
	g := GenesisConfig{Balances: map[string]uint64{addr.String(): 1000}}
	if err := g.SeedFinalState(fs); err != nil {
		t.Fatalf("SeedFinalState: %v", err)
	}

	entry, ok := fs.GetEntry(addr)
	if !ok {
		t.Fatal("expected genesis balance entry to exist")
	}
	if entry.ParallelBalance.Raw() != 1000 {
		t.Fatalf("expected balance 1000, got %d", entry.ParallelBalance.Raw())
	}
}
