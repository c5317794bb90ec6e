package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"finetune-orchestrator/core/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	job := &models.Job{
		ID:        "job_abc",
		Model:     "llama3-2-1b",
		State:     models.JobStatePending,
		Config:    map[string]interface{}{"batch_size": 8},
		Metrics:   map[string]interface{}{},
		CreatedAt: time.Now(),
	}
	if err := st.Put(ctx, job); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := st.Get(ctx, "job_abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "job_abc" || got.Model != "llama3-2-1b" {
		t.Fatalf("got wrong record: %+v", got)
	}
}

func TestMemoryStoreGetUnknownID(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Get(context.Background(), "job_missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreLastWriterWins(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	job := &models.Job{ID: "job_abc", State: models.JobStatePending}
	st.Put(ctx, job)
	job.State = models.JobStateRunning
	st.Put(ctx, job)

	got, _ := st.Get(ctx, "job_abc")
	if got.State != models.JobStateRunning {
		t.Fatalf("state = %s, want running", got.State)
	}
}

func TestMemoryStoreIsolatesReaders(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	job := &models.Job{ID: "job_abc", Logs: []string{"one"}}
	st.Put(ctx, job)

	got, _ := st.Get(ctx, "job_abc")
	got.Logs = append(got.Logs, "mutated by reader")

	again, _ := st.Get(ctx, "job_abc")
	if len(again.Logs) != 1 {
		t.Fatalf("reader mutation leaked into the store: %v", again.Logs)
	}
}

func TestMemoryStoreListIDs(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"job_c", "job_a", "job_b"} {
		st.Put(ctx, &models.Job{ID: id})
	}
	ids, err := st.ListIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 3 || ids[0] != "job_a" || ids[2] != "job_c" {
		t.Fatalf("ids = %v, want sorted job_a..job_c", ids)
	}
}
