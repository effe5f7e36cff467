// Package consensus implements the block graph: a DAG of candidate
// blocks partitioned into mutually compatible cliques, the proof-of-stake
// producer/endorser selector, and the slot clock.
package consensus

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tolchain/corechain/models"
)

// Status is the lifecycle state of a block known to the graph.
type Status int

const (
	StatusIncoming Status = iota
	StatusWaitingForDependencies
	StatusWaitingForSlot
	StatusActive
	StatusDiscarded
	StatusFinal
)

// DiscardReason explains why a block was rejected outright rather than
// left pending.
type DiscardReason string

const (
	ReasonInvalid       DiscardReason = "invalid_structure"
	ReasonStale         DiscardReason = "stale_slot"
	ReasonInvalidParent DiscardReason = "invalid_parents"
)

// Config bounds the graph's pending-block queues and finality behavior.
type Config struct {
	ThreadCount              uint8
	MaxWaitingForDependencies int
	MaxWaitingForSlot         int
	FutureProcessingMaxPeriods uint64
	FinalityThreshold         uint64 // delta_f0: minimum fitness gap for the best clique to finalize
}

// Graph is the block-graph consensus engine: an arena of blocks by id,
// never holding pointers between blocks directly so that discarded or
// pruned blocks can be dropped without dangling references.
type Graph struct {
	cfg           Config
	threadCount   uint8
	genesisBlocks []models.BlockId
	currentSlot   models.Slot

	statuses map[models.BlockId]Status
	reasons  map[models.BlockId]DiscardReason

	activeBlocks map[models.BlockId]*ActiveBlock
	finalBlocks  map[models.BlockId]*ActiveBlock

	waitingForDeps *lru.Cache[models.BlockId, *models.Block]
	waitingForSlot *lru.Cache[models.BlockId, *models.Block]
}

// NewGraph builds a Graph rooted at the given per-thread genesis blocks.
func NewGraph(cfg Config, genesisBlocks []models.BlockId) (*Graph, error) {
	if int(cfg.ThreadCount) != len(genesisBlocks) {
		return nil, fmt.Errorf("consensus: expected %d genesis blocks, got %d", cfg.ThreadCount, len(genesisBlocks))
	}
	depsCache, err := lru.New[models.BlockId, *models.Block](maxOrDefault(cfg.MaxWaitingForDependencies, 1024))
	if err != nil {
		return nil, err
	}
	slotCache, err := lru.New[models.BlockId, *models.Block](maxOrDefault(cfg.MaxWaitingForSlot, 1024))
	if err != nil {
		return nil, err
	}

	g := &Graph{
		cfg:            cfg,
		threadCount:    cfg.ThreadCount,
		genesisBlocks:  append([]models.BlockId(nil), genesisBlocks...),
		statuses:       make(map[models.BlockId]Status),
		reasons:        make(map[models.BlockId]DiscardReason),
		activeBlocks:   make(map[models.BlockId]*ActiveBlock),
		finalBlocks:    make(map[models.BlockId]*ActiveBlock),
		waitingForDeps: depsCache,
		waitingForSlot: slotCache,
	}
	for _, gid := range genesisBlocks {
		g.statuses[gid] = StatusFinal
	}
	return g, nil
}

func maxOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Status returns the current lifecycle state of a block id, and whether
// the graph has any record of it at all.
func (g *Graph) Status(id models.BlockId) (Status, bool) {
	s, ok := g.statuses[id]
	return s, ok
}

// SetCurrentSlot advances the clock the graph uses to judge whether an
// incoming block's slot is too far in the future to process yet.
func (g *Graph) SetCurrentSlot(slot models.Slot) {
	g.currentSlot = slot
	g.retryWaitingForSlot()
}

// Insert runs a block through the six-step ingestion pipeline: structural
// validation, dependency resolution, future-slot bounding, compatibility
// analysis, activation, and clique/finality recomputation.
func (g *Graph) Insert(block *models.Block) (Status, DiscardReason) {
	id := block.ComputeId()
	if existing, ok := g.statuses[id]; ok {
		return existing, g.reasons[id]
	}

	if len(block.Header.Parents) != int(g.threadCount) {
		return g.discard(id, ReasonInvalidParent)
	}

	for _, p := range block.Header.Parents {
		if _, ok := g.statuses[p]; !ok {
			g.statuses[id] = StatusWaitingForDependencies
			g.waitingForDeps.Add(id, block)
			return StatusWaitingForDependencies, ""
		}
		if s := g.statuses[p]; s == StatusDiscarded {
			return g.discard(id, ReasonInvalidParent)
		}
	}

	if block.Header.Slot.Period > g.currentSlot.Period+g.cfg.FutureProcessingMaxPeriods {
		g.statuses[id] = StatusWaitingForSlot
		g.waitingForSlot.Add(id, block)
		return StatusWaitingForSlot, ""
	}
	if block.Header.Slot.Before(g.currentSlot) {
		return g.discard(id, ReasonStale)
	}

	for _, p := range block.Header.Parents {
		if ps, ok := g.statuses[p]; ok && ps != StatusActive && ps != StatusFinal {
			return g.discard(id, ReasonInvalidParent)
		}
	}

	for i, p := range block.Header.Parents {
		pSlot, ok := g.blockSlot(p)
		if !ok {
			return g.discard(id, ReasonInvalidParent)
		}
		if pSlot.Thread != uint8(i) {
			return g.discard(id, ReasonInvalidParent)
		}
		if !pSlot.Before(block.Header.Slot) {
			return g.discard(id, ReasonInvalidParent)
		}
	}

	for i, p1 := range block.Header.Parents {
		for _, p2 := range block.Header.Parents[i+1:] {
			if !g.compatible(p1, p2) {
				return g.discard(id, ReasonInvalidParent)
			}
		}
	}

	g.activate(id, block)
	g.recomputeFinality()
	g.retryWaitingForDependencies()
	return StatusActive, ""
}

func (g *Graph) discard(id models.BlockId, reason DiscardReason) (Status, DiscardReason) {
	g.statuses[id] = StatusDiscarded
	g.reasons[id] = reason
	return StatusDiscarded, reason
}

func (g *Graph) activate(id models.BlockId, block *models.Block) {
	ab := &ActiveBlock{
		Block:        block,
		ID:           id,
		Children:     make(map[models.BlockId]bool),
		Incompatible: make(map[models.BlockId]bool),
		Fitness:      1 + uint64(len(block.Header.Endorsements)),
	}
	// Register ab before computing compatibility so that ancestry checks
	// (which walk g.activeBlocks) can see the new block's own parent links.
	g.activeBlocks[id] = ab
	g.statuses[id] = StatusActive

	for other, otherAB := range g.activeBlocks {
		if other == id {
			continue
		}
		if g.parentsIncompatible(ab, otherAB) {
			g.markIncompatible(ab, otherAB)
			continue
		}
		// Inherit incompatibilities transitively: if an ancestor conflicts
		// with a block, so does every one of its descendants.
		if g.isAncestor(other, id) {
			for conflictID := range otherAB.Incompatible {
				if conflictID == id {
					continue
				}
				if conflictAB, ok := g.activeBlocks[conflictID]; ok {
					g.markIncompatible(ab, conflictAB)
				}
			}
		}
	}
	for _, p := range block.Header.Parents {
		if parentAB, ok := g.activeBlocks[p]; ok {
			parentAB.Children[id] = true
		}
	}
}

func (g *Graph) markIncompatible(a, b *ActiveBlock) {
	a.Incompatible[b.ID] = true
	b.Incompatible[a.ID] = true
}

// recomputeFinality identifies the current best clique and, if its
// fitness lead over every other clique exceeds the configured
// threshold, finalizes every block it contains.
func (g *Graph) recomputeFinality() {
	best, bestFitness, secondFitness := g.bestClique()
	if bestFitness == 0 {
		return
	}
	if bestFitness-secondFitness <= g.cfg.FinalityThreshold {
		return
	}
	for _, id := range best {
		ab, ok := g.activeBlocks[id]
		if !ok {
			continue
		}
		g.finalBlocks[id] = ab
		g.statuses[id] = StatusFinal
		delete(g.activeBlocks, id)
	}
}

func (g *Graph) retryWaitingForDependencies() {
	for _, id := range g.waitingForDeps.Keys() {
		block, ok := g.waitingForDeps.Peek(id)
		if !ok {
			continue
		}
		ready := true
		for _, p := range block.Header.Parents {
			if _, ok := g.statuses[p]; !ok {
				ready = false
				break
			}
		}
		if ready {
			g.waitingForDeps.Remove(id)
			delete(g.statuses, id)
			g.Insert(block)
		}
	}
}

func (g *Graph) retryWaitingForSlot() {
	for _, id := range g.waitingForSlot.Keys() {
		block, ok := g.waitingForSlot.Peek(id)
		if !ok {
			continue
		}
		if block.Header.Slot.Period <= g.currentSlot.Period+g.cfg.FutureProcessingMaxPeriods {
			g.waitingForSlot.Remove(id)
			delete(g.statuses, id)
			g.Insert(block)
		}
	}
}

// ActiveBlocks returns a snapshot of the currently active (non-final)
// block ids.
func (g *Graph) ActiveBlocks() []models.BlockId {
	out := make([]models.BlockId, 0, len(g.activeBlocks))
	for id := range g.activeBlocks {
		out = append(out, id)
	}
	return out
}

// FinalBlocks returns a snapshot of the finalized block ids.
func (g *Graph) FinalBlocks() []models.BlockId {
	out := make([]models.BlockId, 0, len(g.finalBlocks))
	for id := range g.finalBlocks {
		out = append(out, id)
	}
	return out
}

// GetBlock returns the block content for an active or final block id, for
// RPC lookups and for answering network dependency requests. It does not
// see blocks still pending in the incoming/waiting queues.
func (g *Graph) GetBlock(id models.BlockId) (*models.Block, bool) {
	if ab, ok := g.activeBlocks[id]; ok {
		return ab.Block, true
	}
	if ab, ok := g.finalBlocks[id]; ok {
		return ab.Block, true
	}
	return nil, false
}

// CurrentSlot returns the slot most recently set via SetCurrentSlot.
func (g *Graph) CurrentSlot() models.Slot {
	return g.currentSlot
}

// blockSlot resolves the slot of any block the graph knows about,
// including genesis blocks, which carry no stored Block content.
func (g *Graph) blockSlot(id models.BlockId) (models.Slot, bool) {
	for thread, gid := range g.genesisBlocks {
		if gid == id {
			return models.NewSlot(0, uint8(thread)), true
		}
	}
	if ab, ok := g.activeBlocks[id]; ok {
		return ab.Block.Header.Slot, true
	}
	if ab, ok := g.finalBlocks[id]; ok {
		return ab.Block.Header.Slot, true
	}
	return models.Slot{}, false
}
