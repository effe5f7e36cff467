// Package events is a pub/sub broker for execution-produced events: the
// SCOutputEvent-shaped log entries a slot's call frames emit via
// execution.Context.GenerateEvent, plus a couple of node-lifecycle topics
// (operation discarded, block finalized) that share the same broadcast
// path.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/models"
)

// Topic labels what kind of event is being delivered.
type Topic string

const (
	// TopicExecution carries an execution.Event produced during a slot.
	TopicExecution Topic = "execution"
	// TopicOperationDiscarded carries an OperationDiscarded.
	TopicOperationDiscarded Topic = "operation_discarded"
	// TopicBlockFinalized carries a BlockFinalized.
	TopicBlockFinalized Topic = "block_finalized"
)

// OperationDiscarded reports that an operation was dropped from the pool
// or rejected before execution.
type OperationDiscarded struct {
	ID     models.Hash
	Reason string
}

// BlockFinalized reports that a block reached final status in the graph.
type BlockFinalized struct {
	ID   models.BlockId
	Slot models.Slot
}

// Event is the envelope delivered to subscribers; exactly one of its
// fields is populated, matching Topic.
type Event struct {
	Topic     Topic
	Execution *execution.Event
	Discarded *OperationDiscarded
	Finalized *BlockFinalized
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	log      *zap.SugaredLogger
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter(log *zap.SugaredLogger) *Emitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Emitter{handlers: make(map[Topic][]Handler), log: log}
}

// Subscribe registers h to be called whenever a matching event is
// emitted for topic.
func (e *Emitter) Subscribe(topic Topic, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[topic] = append(e.handlers[topic], h)
}

// EmitExecution broadcasts a slot-produced execution event.
func (e *Emitter) EmitExecution(ev execution.Event) {
	e.emit(Event{Topic: TopicExecution, Execution: &ev})
}

// EmitOperationDiscarded broadcasts an operation discard.
func (e *Emitter) EmitOperationDiscarded(d OperationDiscarded) {
	e.emit(Event{Topic: TopicOperationDiscarded, Discarded: &d})
}

// EmitBlockFinalized broadcasts a block reaching final status.
func (e *Emitter) EmitBlockFinalized(f BlockFinalized) {
	e.emit(Event{Topic: TopicBlockFinalized, Finalized: &f})
}

// emit delivers ev to all subscribers for ev.Topic synchronously. Each
// handler is guarded by panic recovery so a misbehaving subscriber cannot
// crash the node or halt block production.
func (e *Emitter) emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Topic]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorw("event handler panicked", "topic", ev.Topic, "panic", r)
				}
			}()
			h(ev)
		}()
	}
}
