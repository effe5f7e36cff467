package consensus

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/models"
)

// Clock emits slot ticks at a fixed cadence: ThreadCount slots per
// Period, Period lasting T0, generalizing a plain interval-ticker loop
// from "one block per interval" to "one slot per interval, cycling
// through threads".
type Clock struct {
	genesis     time.Time
	t0          time.Duration
	threadCount uint8
	log         *zap.SugaredLogger
}

// NewClock creates a Clock starting at genesis, with period length t0
// split evenly across threadCount threads.
func NewClock(genesis time.Time, t0 time.Duration, threadCount uint8, log *zap.SugaredLogger) *Clock {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Clock{genesis: genesis, t0: t0, threadCount: threadCount, log: log}
}

// SlotInterval is the wall-clock duration of a single thread's slot.
func (c *Clock) SlotInterval() time.Duration {
	return c.t0 / time.Duration(c.threadCount)
}

// SlotAt returns the slot that covers the instant now, genesis-relative.
// Instants before genesis map to the genesis slot.
func (c *Clock) SlotAt(now time.Time) models.Slot {
	elapsed := now.Sub(c.genesis)
	if elapsed < 0 {
		return models.NewSlot(0, 0)
	}
	interval := c.SlotInterval()
	ticks := uint64(elapsed / interval)
	period := ticks / uint64(c.threadCount)
	thread := uint8(ticks % uint64(c.threadCount))
	return models.NewSlot(period, thread)
}

// TimeOf returns the wall-clock instant at which slot begins.
func (c *Clock) TimeOf(slot models.Slot) time.Time {
	ticks := slot.Period*uint64(c.threadCount) + uint64(slot.Thread)
	return c.genesis.Add(time.Duration(ticks) * c.SlotInterval())
}

// Run ticks once per slot interval, sending the newly reached slot on out,
// until ctx is cancelled, so it composes with golang.org/x/sync/errgroup
// supervision.
func (c *Clock) Run(ctx context.Context, out chan<- models.Slot) error {
	interval := c.SlotInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := c.SlotAt(time.Now())
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("slot clock stopped", "reason", ctx.Err())
			return nil
		case now := <-ticker.C:
			slot := c.SlotAt(now)
			if slot.Equal(last) {
				continue
			}
			last = slot
			select {
			case out <- slot:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
