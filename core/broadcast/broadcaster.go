// Package broadcast fans snapshots of a job's state out to live
// subscribers. It is a side channel only: the job store remains the
// source of truth, and losing every subscriber loses nothing.
package broadcast

import (
	"sync"
	"time"

	"finetune-orchestrator/core/models"
)

// subscriberBuffer bounds the per-subscriber delivery channel. A
// subscriber that falls this far behind is dropped rather than allowed
// to stall the publishing monitor.
const subscriberBuffer = 16

// DefaultRetireGrace is how long a job's subscriber set survives after
// the job reaches a terminal state, so late subscribers still receive
// the final snapshot from the store before the feed closes.
const DefaultRetireGrace = 30 * time.Second

// Subscription is one live observer of one job's updates
type Subscription struct {
	// C yields snapshots until the subscription is dropped, the job is
	// retired, or Unsubscribe is called. Receivers must not assume the
	// channel stays open.
	C <-chan *models.Job

	jobID string
	ch    chan *models.Job
}

// Broadcaster owns the per-job subscriber sets
type Broadcaster struct {
	mu          sync.Mutex
	subs        map[string]map[*Subscription]struct{}
	retireGrace time.Duration
}

// New creates a Broadcaster with the default retire grace period
func New() *Broadcaster {
	return NewWithGrace(DefaultRetireGrace)
}

// NewWithGrace creates a Broadcaster whose terminal-job subscriber sets
// are torn down after the given grace period.
func NewWithGrace(grace time.Duration) *Broadcaster {
	return &Broadcaster{
		subs:        make(map[string]map[*Subscription]struct{}),
		retireGrace: grace,
	}
}

// Subscribe registers a new observer for the job id. The job does not
// need to exist yet; a feed for an unknown id simply stays silent.
func (b *Broadcaster) Subscribe(jobID string) *Subscription {
	ch := make(chan *models.Job, subscriberBuffer)
	sub := &Subscription{C: ch, jobID: jobID, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[jobID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call
// more than once and after the subscriber was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish delivers the snapshot to every current subscriber of the job.
// Delivery never blocks: a subscriber whose buffer is full is dropped
// from the set instead of delaying the others or the caller.
func (b *Broadcaster) Publish(jobID string, snapshot *models.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[jobID] {
		select {
		case sub.ch <- snapshot:
		default:
			b.removeLocked(sub)
		}
	}
}

// Retire schedules teardown of the job's subscriber set after the grace
// period. Called once the job reaches a terminal state.
func (b *Broadcaster) Retire(jobID string) {
	if b.retireGrace <= 0 {
		b.retireNow(jobID)
		return
	}
	time.AfterFunc(b.retireGrace, func() { b.retireNow(jobID) })
}

// SubscriberCount returns the number of live subscribers for the job
func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

func (b *Broadcaster) retireNow(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[jobID] {
		close(sub.ch)
	}
	delete(b.subs, jobID)
}

// removeLocked drops the subscription and closes its channel. Caller
// holds b.mu.
func (b *Broadcaster) removeLocked(sub *Subscription) {
	set, ok := b.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.subs, sub.jobID)
	}
}
