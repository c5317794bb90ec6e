// Package monitor owns the lifetime of one external training process
// per job: spawning it, consuming its output, deriving progress, and
// driving the job's state machine to a terminal state. The monitor is
// the only writer of its job's record; everything else reads.
package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/models"
	"finetune-orchestrator/core/store"
)

// Monitor drives a single job from Pending to a terminal state
type Monitor struct {
	store      store.JobStore
	bc         *broadcast.Broadcaster
	trainerCmd []string

	mu        sync.Mutex
	job       *models.Job
	cmd       *exec.Cmd
	cancelled bool
}

// New creates a monitor owning the given job record. trainerCmd is the
// argv prefix of the training binary; the job's parameters are appended
// as flags.
func New(st store.JobStore, bc *broadcast.Broadcaster, trainerCmd []string, job *models.Job) *Monitor {
	return &Monitor{
		store:      st,
		bc:         bc,
		trainerCmd: trainerCmd,
		job:        job,
	}
}

// JobID returns the id of the owned job
func (m *Monitor) JobID() string {
	return m.job.ID
}

// Run executes the training process end to end. It blocks until the job
// reaches a terminal state, so callers start it on its own goroutine,
// one per job.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	if m.cancelled {
		// cancelled between submission and start
		m.mu.Unlock()
		return
	}
	if err := m.job.Transition(models.JobStateRunning); err != nil {
		log.Printf("Job %s: refusing to start: %v", m.job.ID, err)
		m.mu.Unlock()
		return
	}
	m.persistAndPublishLocked(ctx)
	m.mu.Unlock()

	configPath, err := m.writeConfig()
	if err != nil {
		m.fail(ctx, "write config", err)
		return
	}
	defer os.Remove(configPath)

	args := append(append([]string(nil), m.trainerCmd[1:]...),
		"--model", m.job.Model,
		"--dataset", m.job.Dataset,
		"--config", configPath,
		"--precision", string(m.job.Precision),
		"--hardware", string(m.job.Hardware),
	)
	cmd := exec.Command(m.trainerCmd[0], args...)

	// stdout and stderr merge into one stream; the trainer emits
	// progress on either
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		pw.Close()
		return
	}
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		pw.Close()
		m.fail(ctx, "spawn trainer", err)
		return
	}
	m.cmd = cmd
	m.mu.Unlock()

	log.Printf("Job %s: trainer started (pid %d)", m.job.ID, cmd.Process.Pid)

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		pw.Close()
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m.processLine(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Job %s: output stream error: %v", m.job.ID, err)
		// keep draining so the process never blocks writing to a pipe
		// without a reader; Wait could not return otherwise
		io.Copy(io.Discard, pr)
	}

	m.finish(ctx, <-waitErr)
}

// Cancel requests cancellation. A pending job transitions directly; a
// running job gets its process signalled best-effort and is marked
// Cancelled regardless of whether the process actually dies.
func (m *Monitor) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job.State.Terminal() {
		return nil
	}
	m.cancelled = true

	if m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("Job %s: signal trainer: %v", m.job.ID, err)
		}
	}

	if err := m.job.Transition(models.JobStateCancelled); err != nil {
		return err
	}
	m.persistAndPublishLocked(ctx)
	m.bc.Retire(m.job.ID)
	log.Printf("Job %s: cancelled", m.job.ID)
	return nil
}

// Snapshot returns a copy of the owned record's current state
func (m *Monitor) Snapshot() *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job.Clone()
}

// processLine handles one line of merged trainer output: log tail,
// progress extraction, store write, fan-out.
func (m *Monitor) processLine(ctx context.Context, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled {
		// drain remaining output without touching the record
		return
	}

	m.job.AppendLog(line)
	m.job.UpdatedAt = time.Now()

	if step, ok := parseStep(line); ok {
		m.job.SetProgress(progressFor(step, m.job.NumSteps()))
		if loss, ok := parseLoss(line); ok {
			m.job.Metrics["loss"] = loss
			m.job.Metrics["step"] = step
		}
	}

	m.persistAndPublishLocked(ctx)
}

// finish applies the terminal transition once the output stream has
// ended and the process has exited.
func (m *Monitor) finish(ctx context.Context, waitErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled {
		return
	}

	final := models.JobStateCompleted
	if waitErr != nil {
		final = models.JobStateFailed
		m.job.Metrics["error"] = waitErr.Error()
	}
	if err := m.job.Transition(final); err != nil {
		log.Printf("Job %s: %v", m.job.ID, err)
		return
	}
	m.job.Progress = 100.0
	m.persistAndPublishLocked(ctx)
	m.bc.Retire(m.job.ID)
	log.Printf("Job %s: finished as %s", m.job.ID, final)
}

// fail transitions the job to Failed after an internal fault so it is
// never left stuck in Running.
func (m *Monitor) fail(ctx context.Context, op string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job.State.Terminal() {
		return
	}
	err := models.Orchestrationf(op, cause)
	log.Printf("Job %s: %v", m.job.ID, err)

	if terr := m.job.Transition(models.JobStateFailed); terr != nil {
		log.Printf("Job %s: %v", m.job.ID, terr)
		return
	}
	m.job.Metrics["error"] = err.Error()
	m.job.Progress = 100.0
	m.persistAndPublishLocked(ctx)
	m.bc.Retire(m.job.ID)
}

// writeConfig dumps the job's training config to a temp YAML file for
// the trainer. The caller removes it on every exit path.
func (m *Monitor) writeConfig() (string, error) {
	data, err := yaml.Marshal(m.job.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	f, err := os.CreateTemp("", m.job.ID+"_config_*.yml")
	if err != nil {
		return "", fmt.Errorf("create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close config file: %w", err)
	}
	return f.Name(), nil
}

// persistAndPublishLocked writes the record to the store and pushes a
// snapshot to subscribers. Caller holds m.mu. The publish is
// non-blocking by construction; a store failure only costs this update,
// the next line writes again.
func (m *Monitor) persistAndPublishLocked(ctx context.Context) {
	snapshot := m.job.Clone()
	if err := m.store.Put(ctx, snapshot); err != nil {
		log.Printf("Job %s: store write failed: %v", m.job.ID, err)
	}
	m.bc.Publish(m.job.ID, snapshot)
}
