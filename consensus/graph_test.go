package consensus

import (
	"testing"

	"github.com/tolchain/corechain/models"
)

func newTestGraph(t *testing.T, threadCount uint8) (*Graph, []models.BlockId) {
	t.Helper()
	genesis := make([]models.BlockId, threadCount)
	for i := range genesis {
		genesis[i] = models.HashData([]byte{0xFF, byte(i)})
	}
	g, err := NewGraph(Config{
		ThreadCount:                threadCount,
		FutureProcessingMaxPeriods: 50,
		FinalityThreshold:          1000, // high enough that nothing finalizes mid-test
	}, genesis)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g, genesis
}

func makeBlock(period uint64, thread uint8, parents []models.BlockId) *models.Block {
	return models.NewBlock(models.NewSlot(period, thread), parents, []byte{thread}, nil)
}

// TestParentInTheFuture mirrors the reference "parent in the future"
// scenario: a block referencing a parent that was never submitted to the
// graph must wait on that dependency rather than become active.
func TestParentInTheFuture(t *testing.T) {
	g, genesis := newTestGraph(t, 2)

	unsubmittedParent := makeBlock(4, 0, genesis)
	child := makeBlock(5, 0, []models.BlockId{unsubmittedParent.ComputeId(), genesis[1]})

	status, _ := g.Insert(child)
	if status != StatusWaitingForDependencies {
		t.Errorf("expected the child to wait on its missing parent, got %v", status)
	}
}

// TestLinearTwoThreadParents mirrors the reference "two threads, linear
// parents" scenario: blocks in both threads become active, and a block
// correctly built on top of them also becomes active.
func TestLinearTwoThreadParents(t *testing.T) {
	g, genesis := newTestGraph(t, 2)

	b1 := makeBlock(1, 0, genesis)
	status, _ := g.Insert(b1)
	if status != StatusActive {
		t.Fatalf("b1: expected active, got %v", status)
	}

	b2 := makeBlock(1, 1, genesis)
	status, _ = g.Insert(b2)
	if status != StatusActive {
		t.Fatalf("b2: expected active, got %v", status)
	}

	b3 := makeBlock(3, 0, []models.BlockId{b1.ComputeId(), b2.ComputeId()})
	status, _ = g.Insert(b3)
	if status != StatusActive {
		t.Errorf("b3: expected active, got %v", status)
	}
}

// TestParentOnWrongThreadDiscarded mirrors the reference "two threads,
// linear parents" scenario's negative case: a block whose parent list
// assigns a thread-1 block to the thread-0 parent slot (and vice versa)
// must be discarded outright rather than become active.
func TestParentOnWrongThreadDiscarded(t *testing.T) {
	g, genesis := newTestGraph(t, 2)

	b1 := makeBlock(1, 0, genesis)
	if status, _ := g.Insert(b1); status != StatusActive {
		t.Fatalf("b1: expected active, got %v", status)
	}

	b2 := makeBlock(1, 1, genesis)
	if status, _ := g.Insert(b2); status != StatusActive {
		t.Fatalf("b2: expected active, got %v", status)
	}

	// b3 lists b2 (a thread-1 block) as its thread-0 parent and b1 (a
	// thread-0 block) as its thread-1 parent.
	b3 := makeBlock(3, 0, []models.BlockId{b2.ComputeId(), b1.ComputeId()})
	status, reason := g.Insert(b3)
	if status != StatusDiscarded {
		t.Fatalf("b3: expected discarded for wrong-thread parents, got %v", status)
	}
	if reason != ReasonInvalidParent {
		t.Errorf("expected ReasonInvalidParent, got %v", reason)
	}
}

// TestParentSlotNotBeforeBlockDiscarded checks that a block naming a
// parent whose slot is not strictly before its own slot is discarded,
// even when the parent is otherwise valid and on the right thread.
func TestParentSlotNotBeforeBlockDiscarded(t *testing.T) {
	g, genesis := newTestGraph(t, 2)

	b1 := makeBlock(5, 0, genesis)
	if status, _ := g.Insert(b1); status != StatusActive {
		t.Fatalf("b1: expected active, got %v", status)
	}

	// b2 claims b1 as its thread-0 parent but sits at an earlier period.
	b2 := makeBlock(4, 0, []models.BlockId{b1.ComputeId(), genesis[1]})
	status, reason := g.Insert(b2)
	if status != StatusDiscarded {
		t.Fatalf("b2: expected discarded for non-increasing parent slot, got %v", status)
	}
	if reason != ReasonInvalidParent {
		t.Errorf("expected ReasonInvalidParent, got %v", reason)
	}
}

// TestIncompatibleCliques mirrors the reference "parents in incompatible
// cliques" scenario: once two blocks fork a thread, a later block that
// tries to build on both forks at once inherits the conflict and must
// not become active in the same clique as either fork.
func TestIncompatibleCliques(t *testing.T) {
	g, genesis := newTestGraph(t, 2)

	forkABlock := makeBlock(1, 0, genesis)
	forkAID := forkABlock.ComputeId()

	forkBBlock := makeBlock(2, 0, genesis)
	forkBID := forkBBlock.ComputeId()
	status, _ := g.Insert(forkBBlock)
	if status != StatusActive {
		t.Fatalf("forkB: expected active, got %v", status)
	}

	g.Insert(forkABlock)
	if s, _ := g.Status(forkAID); s != StatusActive {
		t.Fatalf("forkA: expected active once submitted, got %v", s)
	}

	b1 := makeBlock(1, 1, []models.BlockId{forkAID, genesis[1]})
	status, _ = g.Insert(b1)
	if status != StatusActive {
		t.Fatalf("b1 built on forkA: expected active, got %v", status)
	}

	abA, okA := g.activeBlocks[forkAID]
	abB, okB := g.activeBlocks[forkBID]
	if !okA || !okB {
		t.Fatal("expected both forks to remain tracked as active blocks")
	}
	if !g.parentsIncompatible(abA, abB) {
		t.Error("forks on the same thread, neither an ancestor of the other, should be incompatible")
	}
	if !abA.Incompatible[forkBID] || !abB.Incompatible[forkAID] {
		t.Error("incompatibility should be recorded symmetrically")
	}

	// A block that tries to build on both forkB (thread 0) and b1, whose
	// thread-0 lineage runs through the incompatible forkA, carries
	// mutually incompatible parents and must be discarded outright.
	conflictingChild := makeBlock(3, 0, []models.BlockId{forkBID, b1.ComputeId()})
	status, reason := g.Insert(conflictingChild)
	if status != StatusDiscarded {
		t.Fatalf("expected the block with incompatible parents to be discarded, got %v", status)
	}
	if reason != ReasonInvalidParent {
		t.Errorf("expected ReasonInvalidParent, got %v", reason)
	}
}
