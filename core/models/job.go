package models

import "time"

// HardwareType identifies the accelerator backend a job runs on
type HardwareType string

const (
	HardwareTPU      HardwareType = "tpu"
	HardwareTrainium HardwareType = "trainium"
	HardwareGPU      HardwareType = "gpu"
	HardwareAMD      HardwareType = "amd"
)

// Valid reports whether the hardware type is one the platform knows
func (h HardwareType) Valid() bool {
	switch h {
	case HardwareTPU, HardwareTrainium, HardwareGPU, HardwareAMD:
		return true
	}
	return false
}

// Precision is the numeric precision the model is trained in
type Precision string

const (
	PrecisionBFloat16 Precision = "bfloat16"
	PrecisionFloat32  Precision = "float32"
)

// Valid reports whether the precision is supported
func (p Precision) Valid() bool {
	return p == PrecisionBFloat16 || p == PrecisionFloat32
}

// LogTailCapacity bounds the number of recent output lines kept per job
const LogTailCapacity = 100

// Job is the central record for one fine-tuning run. The identifying
// fields are immutable after creation; state, progress, logs and metrics
// are written only by the job's own process monitor.
type Job struct {
	ID        string                 `json:"job_id"`
	Model     string                 `json:"model"`
	Dataset   string                 `json:"dataset"`
	Hardware  HardwareType           `json:"hardware"`
	Precision Precision              `json:"precision"`
	Config    map[string]interface{} `json:"config"`
	State     JobState               `json:"status"`
	Progress  float64                `json:"progress"`
	Logs      []string               `json:"logs"`
	Metrics   map[string]interface{} `json:"metrics"`
	CreatedAt time.Time              `json:"created_at"`
	StartedAt *time.Time             `json:"started_at,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AppendLog appends a line to the log tail, evicting the oldest line
// once the tail is at capacity.
func (j *Job) AppendLog(line string) {
	j.Logs = append(j.Logs, line)
	if len(j.Logs) > LogTailCapacity {
		j.Logs = j.Logs[len(j.Logs)-LogTailCapacity:]
	}
}

// SetProgress raises the job's progress to p, capped at 100. Lower
// values are ignored so readers never observe progress moving backwards.
func (j *Job) SetProgress(p float64) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// NumSteps returns the configured total step count, defaulting to 1000
// when the config does not carry one.
func (j *Job) NumSteps() int {
	if v, ok := j.Config["num_steps"]; ok {
		switch n := v.(type) {
		case int:
			if n > 0 {
				return n
			}
		case float64: // JSON numbers decode as float64
			if n > 0 {
				return int(n)
			}
		}
	}
	return 1000
}

// UserID returns the owner key stored in the job's config, if any
func (j *Job) UserID() string {
	if v, ok := j.Config["user_id"].(string); ok {
		return v
	}
	return ""
}

// Clone returns a copy safe to hand to readers and subscribers: the
// mutable collections are copied so the monitor keeps appending to its
// own.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Logs = append([]string(nil), j.Logs...)
	cp.Config = make(map[string]interface{}, len(j.Config))
	for k, v := range j.Config {
		cp.Config[k] = v
	}
	cp.Metrics = make(map[string]interface{}, len(j.Metrics))
	for k, v := range j.Metrics {
		cp.Metrics[k] = v
	}
	if j.StartedAt != nil {
		startedAt := *j.StartedAt
		cp.StartedAt = &startedAt
	}
	return &cp
}

// TuningRequest is a request to start a fine-tuning job
type TuningRequest struct {
	Model     string                 `json:"model"`
	Dataset   string                 `json:"dataset"`
	Config    map[string]interface{} `json:"config"`
	Hardware  HardwareType           `json:"hardware"`
	Precision Precision              `json:"precision"`
	UserID    string                 `json:"user_id,omitempty"`
}

// Validate checks the request shape before any state is created,
// filling in the default hardware and precision.
func (r *TuningRequest) Validate() error {
	if r.Model == "" {
		return invalidInputf("model is required")
	}
	if r.Dataset == "" {
		return invalidInputf("dataset is required")
	}
	if r.Hardware == "" {
		r.Hardware = HardwareTPU
	}
	if !r.Hardware.Valid() {
		return invalidInputf("unknown hardware type %q", r.Hardware)
	}
	if r.Precision == "" {
		r.Precision = PrecisionBFloat16
	}
	if !r.Precision.Valid() {
		return invalidInputf("unknown precision %q", r.Precision)
	}
	return nil
}
