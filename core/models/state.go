package models

import "time"

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are allowed
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// transitions is the full set of legal state edges. Anything not listed
// here is a programming error, not a retryable condition.
var transitions = map[JobState][]JobState{
	JobStatePending: {JobStateRunning, JobStateCancelled},
	JobStateRunning: {JobStateCompleted, JobStateFailed, JobStateCancelled},
}

// CanTransition reports whether the edge from "from" to "to" is legal
func CanTransition(from, to JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the job to the given state, bumping UpdatedAt.
// Entering Running records the start timestamp runtime limits are
// measured against. On an illegal edge it returns ErrInvalidTransition
// and leaves the job untouched.
func (j *Job) Transition(to JobState) error {
	if !CanTransition(j.State, to) {
		return invalidTransitionf("%s -> %s", j.State, to)
	}
	now := time.Now()
	if to == JobStateRunning {
		j.StartedAt = &now
	}
	j.State = to
	j.UpdatedAt = now
	return nil
}
