package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/models"
	"finetune-orchestrator/core/store"
)

func testJob(id string) *models.Job {
	now := time.Now()
	return &models.Job{
		ID:        id,
		Model:     "llama3-2-1b",
		Dataset:   "test-dataset",
		Hardware:  models.HardwareGPU,
		Precision: models.PrecisionBFloat16,
		Config:    map[string]interface{}{"num_steps": 1000},
		State:     models.JobStatePending,
		Logs:      []string{},
		Metrics:   map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// writeScript drops a stub trainer next to the test; the monitor passes
// flags the stub simply ignores.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub trainer: %v", err)
	}
	return path
}

func newTestMonitor(t *testing.T, job *models.Job, script string) (*Monitor, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.Put(context.Background(), job); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	bc := broadcast.NewWithGrace(0)
	return New(st, bc, []string{"/bin/sh", script}, job), st
}

func TestRunCompletesOnExitZero(t *testing.T) {
	script := writeScript(t, `echo "step 500 loss 0.31"`+"\n"+`echo "step 1000 loss 0.10"`+"\nexit 0\n")
	job := testJob("job_complete")
	m, st := newTestMonitor(t, job, script)

	m.Run(context.Background())

	stored, err := st.Get(context.Background(), "job_complete")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.State != models.JobStateCompleted {
		t.Fatalf("state = %s, want completed", stored.State)
	}
	if stored.Progress != 100.0 {
		t.Fatalf("progress = %v, want 100.0", stored.Progress)
	}
	if len(stored.Logs) != 2 {
		t.Fatalf("log tail has %d lines, want 2", len(stored.Logs))
	}
	if loss, ok := stored.Metrics["loss"].(float64); !ok || loss != 0.10 {
		t.Fatalf("metrics loss = %v, want 0.10", stored.Metrics["loss"])
	}
}

func TestRunFailsOnNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "step 100 loss 0.9"`+"\nexit 1\n")
	job := testJob("job_fail")
	m, st := newTestMonitor(t, job, script)

	m.Run(context.Background())

	stored, _ := st.Get(context.Background(), "job_fail")
	if stored.State != models.JobStateFailed {
		t.Fatalf("state = %s, want failed", stored.State)
	}
	if stored.Progress != 100.0 {
		t.Fatalf("progress = %v, want 100.0", stored.Progress)
	}
	if _, ok := stored.Metrics["error"]; !ok {
		t.Fatal("failure cause missing from metrics")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	script := writeScript(t, `>&2 echo "warning from stderr"`+"\nexit 0\n")
	job := testJob("job_stderr")
	m, st := newTestMonitor(t, job, script)

	m.Run(context.Background())

	stored, _ := st.Get(context.Background(), "job_stderr")
	if len(stored.Logs) != 1 || !strings.Contains(stored.Logs[0], "warning from stderr") {
		t.Fatalf("stderr line not captured, logs: %v", stored.Logs)
	}
}

func TestRunFailsOnUnspawnableTrainer(t *testing.T) {
	job := testJob("job_nospawn")
	st := store.NewMemoryStore()
	st.Put(context.Background(), job)
	bc := broadcast.NewWithGrace(0)
	m := New(st, bc, []string{"/nonexistent/trainer/binary"}, job)

	m.Run(context.Background())

	stored, _ := st.Get(context.Background(), "job_nospawn")
	if stored.State != models.JobStateFailed {
		t.Fatalf("state = %s, want failed", stored.State)
	}
	if _, ok := stored.Metrics["error"]; !ok {
		t.Fatal("spawn error missing from metrics")
	}
}

func TestRunSurvivesOverlongOutputLine(t *testing.T) {
	// a single line past the scanner's buffer cap aborts the line loop;
	// the monitor must still drain the pipe and reap the process
	script := writeScript(t, "head -c 2097152 /dev/zero | tr '\\0' 'x'\necho \"\"\nexit 0\n")
	job := testJob("job_longline")
	m, st := newTestMonitor(t, job, script)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("monitor did not return after an over-long output line")
	}

	stored, _ := st.Get(context.Background(), "job_longline")
	if stored.State != models.JobStateCompleted {
		t.Fatalf("state = %s, want completed", stored.State)
	}
	if stored.Progress != 100.0 {
		t.Fatalf("progress = %v, want 100.0", stored.Progress)
	}
}

func TestCancelPendingJob(t *testing.T) {
	job := testJob("job_cancel_pending")
	m, st := newTestMonitor(t, job, "/bin/true")

	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := st.Get(context.Background(), "job_cancel_pending")
	if stored.State != models.JobStateCancelled {
		t.Fatalf("state = %s, want cancelled", stored.State)
	}

	// a cancelled job must never start running
	m.Run(context.Background())
	stored, _ = st.Get(context.Background(), "job_cancel_pending")
	if stored.State != models.JobStateCancelled {
		t.Fatalf("state after Run = %s, want cancelled", stored.State)
	}
}

func TestCancelRunningJob(t *testing.T) {
	script := writeScript(t, `echo "started"`+"\nexec sleep 10\n")
	job := testJob("job_cancel_running")
	m, st := newTestMonitor(t, job, script)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	// wait until the trainer is actually running
	deadline := time.After(5 * time.Second)
	for {
		snapshot := m.Snapshot()
		if snapshot.State == models.JobStateRunning && len(snapshot.Logs) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("trainer never reached running state")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stored, _ := st.Get(context.Background(), "job_cancel_running")
	if stored.State != models.JobStateCancelled {
		t.Fatalf("state = %s, want cancelled", stored.State)
	}

	// SIGTERM should take the sleep down well before its 10 seconds
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not return after cancellation")
	}

	// the terminal state must survive process exit
	stored, _ = st.Get(context.Background(), "job_cancel_running")
	if stored.State != models.JobStateCancelled {
		t.Fatalf("state after exit = %s, want cancelled", stored.State)
	}
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	job := testJob("job_cancel_done")
	m, st := newTestMonitor(t, job, script)

	m.Run(context.Background())
	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel of terminal job should be a no-op, got %v", err)
	}
	stored, _ := st.Get(context.Background(), "job_cancel_done")
	if stored.State != models.JobStateCompleted {
		t.Fatalf("state = %s, want completed", stored.State)
	}
}

func TestProcessLineMonotonicProgress(t *testing.T) {
	job := testJob("job_monotonic")
	job.State = models.JobStateRunning
	m, _ := newTestMonitor(t, job, "/bin/true")

	m.processLine(context.Background(), "step 500 loss 0.31")
	if got := m.Snapshot().Progress; got != 50.0 {
		t.Fatalf("progress = %v, want 50.0", got)
	}

	// a late line with a smaller step must not lower progress
	m.processLine(context.Background(), "step 200 loss 0.45")
	if got := m.Snapshot().Progress; got != 50.0 {
		t.Fatalf("out-of-order line lowered progress to %v", got)
	}

	m.processLine(context.Background(), "step 750 loss 0.22")
	if got := m.Snapshot().Progress; got != 75.0 {
		t.Fatalf("progress = %v, want 75.0", got)
	}
}

func TestProcessLineSwallowsMalformedLines(t *testing.T) {
	job := testJob("job_malformed")
	job.State = models.JobStateRunning
	m, _ := newTestMonitor(t, job, "/bin/true")

	m.processLine(context.Background(), "step 100 loss 0.5")
	m.processLine(context.Background(), "step banana loss kiwi")
	m.processLine(context.Background(), "")

	snapshot := m.Snapshot()
	if snapshot.Progress != 10.0 {
		t.Fatalf("progress = %v, want 10.0", snapshot.Progress)
	}
	if len(snapshot.Logs) != 3 {
		t.Fatalf("malformed lines must still land in the log tail, got %d lines", len(snapshot.Logs))
	}
}

func TestRunPublishesSnapshots(t *testing.T) {
	script := writeScript(t, `echo "step 500 loss 0.31"`+"\nexit 0\n")
	job := testJob("job_publish")
	st := store.NewMemoryStore()
	st.Put(context.Background(), job)
	bc := broadcast.NewWithGrace(0)
	m := New(st, bc, []string{"/bin/sh", script}, job)

	sub := bc.Subscribe("job_publish")
	m.Run(context.Background())

	var last *models.Job
	for snapshot := range sub.C {
		last = snapshot
	}
	if last == nil {
		t.Fatal("no snapshots delivered")
	}
	if last.State != models.JobStateCompleted || last.Progress != 100.0 {
		t.Fatalf("final snapshot = %s/%v, want completed/100", last.State, last.Progress)
	}
}
