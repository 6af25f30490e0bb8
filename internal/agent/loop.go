package agent

import (
	"context"
	"errors"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/niceyeti/deliveroo-agent/internal/planerr"
)

// yieldInterval is the cooperative-yield tick used when the queue is empty,
// mapping spec.md §5's "explicit yield (setImmediate-equivalent) when the
// queue is empty, allowing sensor callbacks to drain" onto Go's scheduler:
// goroutines don't need an explicit Gosched to let others run, but the tick
// still bounds how eagerly the loop re-polls an empty queue.
const yieldInterval = 10 * time.Millisecond

// Run is the agent loop (spec.md §4.6): while the queue is non-empty and
// the agent is initialized, pop the head and achieve it, logging any
// failure; otherwise idle for one tick. It returns when ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	idle := channerics.NewTicker(ctx.Done(), yieldInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if a.QueueLen() == 0 || !a.Initialized() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-idle:
			}
			continue
		}

		it := a.PopHead()
		if it == nil {
			continue
		}

		if _, err := it.Achieve(ctx); err != nil && !errors.Is(err, planerr.ErrStopped) {
			a.log.Warn().Err(err).Str("intention_id", it.ID).Str("predicate", it.Pred.String()).Msg("intention failed")
		}
	}
}
