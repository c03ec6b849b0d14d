// internal/syncer/poller.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kylediaz/github-chat/internal/database"
)

const (
	// Number of invocation statuses to poll in parallel
	pollConcurrency = 5
)

// Poller periodically walks registered invocations that have not reached a
// terminal status and refreshes them, so indexing progress is recorded
// even while nobody is asking about the repository. Any number of replicas
// can run one: the row locks make overlapping cycles collapse onto single
// fetches.
type Poller struct {
	q         database.Querier
	refresher resourceRefresher
	interval  time.Duration
	batchSize int32
	logger    *slog.Logger
}

// NewPoller creates a new Poller instance.
func NewPoller(q database.Querier, refresher resourceRefresher, interval time.Duration, batchSize int32, logger *slog.Logger) *Poller {
	return &Poller{
		q:         q,
		refresher: refresher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start begins the continuous polling process.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting invocation poller", "interval", p.interval.String(), "concurrency", pollConcurrency)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runPollCycle(ctx) // Initial pass

	for {
		select {
		case <-ticker.C:
			p.runPollCycle(ctx)
		case <-ctx.Done():
			p.logger.Info("Poller shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runPollCycle refreshes one batch of pending invocations concurrently.
func (p *Poller) runPollCycle(ctx context.Context) {
	pending, err := p.q.ListPendingInvocations(ctx, p.batchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Error("Failed to list pending invocations", "error", err)
		}
		return
	}
	if len(pending) == 0 {
		return
	}
	p.logger.Debug("Polling pending invocations", "count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)

	for _, inv := range pending {
		inv := inv
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := p.refresher.RefreshInvocationStatus(gctx, inv.ID, false)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("Failed to refresh invocation status", "invocation_id", inv.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}
