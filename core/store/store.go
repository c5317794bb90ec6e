// Package store provides the durable job record map. Implementations
// guarantee last-writer-wins per key and nothing across keys; the
// single-writer rule in the monitor is what keeps records coherent.
package store

import (
	"context"

	"finetune-orchestrator/core/models"
)

// JobStore is the external durable map holding job records by id
type JobStore interface {
	// Get returns the job for id, or models.ErrNotFound
	Get(ctx context.Context, id string) (*models.Job, error)

	// Put writes the full record for the job's id, replacing any
	// previous value
	Put(ctx context.Context, job *models.Job) error

	// ListIDs returns all known job ids, newest first where the
	// backend can order them
	ListIDs(ctx context.Context) ([]string, error)

	// Close releases the backend connection
	Close() error
}

// keyPrefix namespaces job records in shared keyspaces
const keyPrefix = "job:"
