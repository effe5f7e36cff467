package main

import (
	"context"
	"encoding/hex"
	"sort"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/config"
	"github.com/tolchain/corechain/consensus"
	"github.com/tolchain/corechain/crypto"
	"github.com/tolchain/corechain/events"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/finalstate"
	"github.com/tolchain/corechain/metrics"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/network"
	"github.com/tolchain/corechain/pool"
)

// runtime ties every collaborator together into the slot-driven loop a
// node follows once wiring is complete: advance the clock, produce a
// block when selected, ingest blocks from the network, and settle
// newly-finalized blocks into final state.
type runtime struct {
	cfg *config.Config
	log *zap.SugaredLogger

	clock    *consensus.Clock
	graph    *consensus.Graph
	selector *consensus.Selector
	driver   *execution.Driver
	final    *finalstate.FinalState
	opPool   *pool.Controller
	runner   execution.Runner
	emitter  *events.Emitter
	metrics  *metrics.Collectors
	node     *network.Node

	priv crypto.PrivateKey
	pub  crypto.PublicKey

	tips      []models.BlockId
	processed map[models.BlockId]bool
}

func newRuntime(cfg *config.Config, priv crypto.PrivateKey, genesisIds []models.BlockId, c *consensus.Clock, g *consensus.Graph, sel *consensus.Selector, d *execution.Driver, fs *finalstate.FinalState, ctrl *pool.Controller, runner execution.Runner, emitter *events.Emitter, mtr *metrics.Collectors, node *network.Node, log *zap.SugaredLogger) *runtime {
	tips := append([]models.BlockId(nil), genesisIds...)
	return &runtime{
		cfg:       cfg,
		log:       log,
		clock:     c,
		graph:     g,
		selector:  sel,
		driver:    d,
		final:     fs,
		opPool:    ctrl,
		runner:    runner,
		emitter:   emitter,
		metrics:   mtr,
		node:      node,
		priv:      priv,
		pub:       priv.Public(),
		tips:      tips,
		processed: make(map[models.BlockId]bool),
	}
}

// run consumes slots from the clock's Run loop (supervised separately by
// the caller's errgroup), drives own block production, ingests inbound
// network events, and settles newly-finalized blocks, until ctx is
// cancelled.
func (r *runtime) run(ctx context.Context, slots <-chan models.Slot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case slot := <-slots:
			r.onSlot(slot)
		case br := <-r.node.BlockReceived():
			r.onBlockReceived(br)
		case dq := <-r.node.DependencyQueries():
			r.log.Debugw("dependency query from peer for unknown block", "block_id", dq.ID.String())
		}
	}
}

func (r *runtime) onSlot(slot models.Slot) {
	r.graph.SetCurrentSlot(slot)

	producer, _, err := r.selector.Draw(slot, r.cfg.EndorsementCount)
	if err != nil {
		r.log.Warnw("producer draw failed", "slot", slot, "error", err)
		return
	}
	if producer != models.NewUserAddress(r.pub) {
		return
	}
	if err := r.produceBlock(slot); err != nil {
		r.log.Errorw("block production failed", "slot", slot, "error", err)
	}
}

func (r *runtime) produceBlock(slot models.Slot) error {
	parents := append([]models.BlockId(nil), r.tips...)
	batch := r.opPool.GetOperationBatch(pool.GetOperationBatchRequest{
		Slot:   slot,
		MaxGas: r.cfg.MaxBlockGas,
	})

	block := models.NewBlock(slot, parents, []byte(r.pub), batch.Operations)
	sigHex := crypto.Sign(r.priv, models.EncodeBlockHeader(block.Header))
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return err
	}
	block.Signature = sig

	id := block.ComputeId()
	status, reason := r.graph.Insert(block)
	if status == consensus.StatusDiscarded {
		r.log.Warnw("own block discarded on insert", "slot", slot, "reason", reason)
		return nil
	}
	if status == consensus.StatusActive {
		r.tips[slot.Thread] = id
	}

	if err := r.node.Propagate(id, block); err != nil {
		r.log.Warnw("propagate own block failed", "block_id", id.String(), "error", err)
	}
	r.settleNewFinals()
	return nil
}

func (r *runtime) onBlockReceived(br network.BlockReceived) {
	status, reason := r.graph.Insert(br.Block)
	switch status {
	case consensus.StatusActive:
		r.tips[br.Block.Header.Slot.Thread] = br.ID
	case consensus.StatusDiscarded:
		r.log.Debugw("received block discarded", "block_id", br.ID.String(), "reason", reason)
	}
	r.settleNewFinals()
}

// settleNewFinals runs every newly-finalized block not yet applied to
// final state through the execution driver, in slot order, then folds
// the result into FinalState and evicts its operations from the pool.
func (r *runtime) settleNewFinals() {
	finals := r.graph.FinalBlocks()
	type entry struct {
		id    models.BlockId
		block *models.Block
	}
	var fresh []entry
	for _, id := range finals {
		if r.processed[id] {
			continue
		}
		block, ok := r.graph.GetBlock(id)
		if !ok {
			continue
		}
		fresh = append(fresh, entry{id: id, block: block})
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].block.Header.Slot.Before(fresh[j].block.Header.Slot)
	})

	for _, e := range fresh {
		r.processed[e.id] = true
		ctx := execution.NewActiveSlotContext(e.block.Header.Slot, e.id, r.final, r.final.Pool())
		out := r.driver.RunSlot(ctx, e.block, r.runner, r.cfg.MaxAsyncGasPerSlot)
		if err := r.final.ApplyOutput(out); err != nil {
			r.log.Errorw("apply finalized slot failed", "block_id", e.id.String(), "error", err)
			continue
		}

		ids := make([]models.Hash, len(e.block.Operations))
		for i, op := range e.block.Operations {
			ids[i] = op.ID
		}
		r.opPool.RemoveOperations(ids)

		for _, ev := range out.Events {
			r.emitter.EmitExecution(ev)
		}
		r.emitter.EmitBlockFinalized(events.BlockFinalized{ID: e.id, Slot: e.block.Header.Slot})

		if r.metrics != nil {
			r.metrics.SlotsExecuted.Inc()
			r.metrics.BlocksFinal.Inc()
			r.metrics.OperationsExecuted.Add(float64(len(e.block.Operations)))
		}
	}

	if r.metrics != nil {
		r.metrics.BlocksActive.Set(float64(len(r.graph.ActiveBlocks())))
		r.metrics.OperationPoolLen.Set(float64(r.opPool.Len()))
	}
}
