package monitoring

import (
	"context"
	"log"
	"time"

	"finetune-orchestrator/core/models"
	"finetune-orchestrator/core/orchestrator"
	"finetune-orchestrator/core/store"
)

// Watchdog cancels jobs that have been Running longer than the
// configured maximum. The orchestration core itself carries no timeout
// semantics; this is the external supervisor layered on the cancel path.
type Watchdog struct {
	store      store.JobStore
	orch       *orchestrator.Orchestrator
	maxRuntime time.Duration
	interval   time.Duration
}

// NewWatchdog creates a watchdog. maxRuntime <= 0 disables it.
func NewWatchdog(st store.JobStore, orch *orchestrator.Orchestrator, maxRuntime time.Duration) *Watchdog {
	return &Watchdog{
		store:      st,
		orch:       orch,
		maxRuntime: maxRuntime,
		interval:   time.Minute,
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *Watchdog) Start(ctx context.Context) {
	if w.maxRuntime <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	ids, err := w.store.ListIDs(ctx)
	if err != nil {
		log.Printf("Watchdog: failed to list jobs: %v", err)
		return
	}

	for _, id := range ids {
		job, err := w.store.Get(ctx, id)
		if err != nil {
			continue
		}
		if job.State != models.JobStateRunning {
			continue
		}
		// queue time does not count against the limit; records without
		// a start timestamp fall back to creation time
		started := job.CreatedAt
		if job.StartedAt != nil {
			started = *job.StartedAt
		}
		if time.Since(started) < w.maxRuntime {
			continue
		}
		log.Printf("Watchdog: job %s exceeded max runtime %v, cancelling", id, w.maxRuntime)
		if err := w.orch.Cancel(ctx, id); err != nil {
			log.Printf("Watchdog: cancel %s failed: %v", id, err)
		}
	}
}
