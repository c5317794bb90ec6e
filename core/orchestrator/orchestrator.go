// Package orchestrator wires submission, storage, monitoring and
// fan-out together. It is the only component that knows all the others.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/models"
	"finetune-orchestrator/core/monitor"
	"finetune-orchestrator/core/store"
)

// Orchestrator accepts tuning requests and hands each accepted job to
// its own process monitor.
type Orchestrator struct {
	store      store.JobStore
	bc         *broadcast.Broadcaster
	trainerCmd []string

	mu       sync.Mutex
	monitors map[string]*monitor.Monitor
}

// New creates an orchestrator. trainerCmd is the command line of the
// training binary, split into argv form.
func New(st store.JobStore, bc *broadcast.Broadcaster, trainerCmd string) *Orchestrator {
	return &Orchestrator{
		store:      st,
		bc:         bc,
		trainerCmd: strings.Fields(trainerCmd),
		monitors:   make(map[string]*monitor.Monitor),
	}
}

// Submit validates the request, durably stores a Pending record and
// starts the job's monitor asynchronously. It returns the job id as
// soon as the record is stored; callers never wait on process spawn.
func (o *Orchestrator) Submit(ctx context.Context, req *models.TuningRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	job := newJob(req)
	if err := o.store.Put(ctx, job); err != nil {
		return "", models.Orchestrationf("store job", err)
	}

	m := monitor.New(o.store, o.bc, o.trainerCmd, job)
	o.mu.Lock()
	o.monitors[job.ID] = m
	o.mu.Unlock()

	go func() {
		// the monitor runs on the background context: a job outlives
		// the request that submitted it
		m.Run(context.Background())
		o.mu.Lock()
		delete(o.monitors, job.ID)
		o.mu.Unlock()
	}()

	log.Printf("Submitted job %s (model %s, hardware %s)", job.ID, job.Model, job.Hardware)
	return job.ID, nil
}

// Cancel cancels the job. Unknown ids return models.ErrNotFound; jobs
// already terminal are a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}

	o.mu.Lock()
	m := o.monitors[jobID]
	o.mu.Unlock()

	if m != nil {
		return m.Cancel(ctx)
	}

	// No live monitor. The monitor may have finished and stored a
	// terminal record between the read above and the map lookup, so
	// re-read before touching the record; a finished job must never be
	// overwritten by a late cancel.
	job, err = o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}

	// Genuinely orphaned record (e.g. the server restarted under a
	// pending job): cancel it directly.
	if err := job.Transition(models.JobStateCancelled); err != nil {
		return err
	}
	if err := o.store.Put(ctx, job); err != nil {
		return models.Orchestrationf("store cancel", err)
	}
	o.bc.Publish(jobID, job)
	o.bc.Retire(jobID)
	return nil
}

// GetStatus returns the current snapshot of the job
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*models.Job, error) {
	return o.store.Get(ctx, jobID)
}

// ListJobs returns up to limit job snapshots, optionally filtered by the
// owner key in the job config.
func (o *Orchestrator) ListJobs(ctx context.Context, userID string, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := o.store.ListIDs(ctx)
	if err != nil {
		return nil, models.Orchestrationf("list jobs", err)
	}

	jobs := make([]*models.Job, 0, limit)
	for _, id := range ids {
		if len(jobs) >= limit {
			break
		}
		job, err := o.store.Get(ctx, id)
		if err != nil {
			// a record deleted between list and get is not an error
			continue
		}
		if userID != "" && job.UserID() != userID {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// newJob builds a fresh Pending record from a validated request
func newJob(req *models.TuningRequest) *models.Job {
	now := time.Now()
	config := make(map[string]interface{}, len(req.Config)+1)
	for k, v := range req.Config {
		config[k] = v
	}
	if req.UserID != "" {
		config["user_id"] = req.UserID
	}
	return &models.Job{
		ID:        fmt.Sprintf("job_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8]),
		Model:     req.Model,
		Dataset:   req.Dataset,
		Hardware:  req.Hardware,
		Precision: req.Precision,
		Config:    config,
		State:     models.JobStatePending,
		Progress:  0,
		Logs:      []string{},
		Metrics:   map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
