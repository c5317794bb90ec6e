package broadcast

import (
	"fmt"
	"testing"
	"time"

	"finetune-orchestrator/core/models"
)

func snapshot(id string, progress float64) *models.Job {
	return &models.Job{ID: id, State: models.JobStateRunning, Progress: progress}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	bc := NewWithGrace(0)
	a := bc.Subscribe("job_1")
	b := bc.Subscribe("job_1")

	bc.Publish("job_1", snapshot("job_1", 10))

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case got := <-sub.C:
			if got.Progress != 10 {
				t.Fatalf("subscriber %s got progress %v, want 10", name, got.Progress)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestPublishIsScopedToJob(t *testing.T) {
	bc := NewWithGrace(0)
	other := bc.Subscribe("job_other")

	bc.Publish("job_1", snapshot("job_1", 10))

	select {
	case got := <-other.C:
		t.Fatalf("subscriber of another job received %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberIsDroppedNotWaitedOn(t *testing.T) {
	bc := NewWithGrace(0)
	slow := bc.Subscribe("job_1")
	fast := bc.Subscribe("job_1")

	// Fill the slow subscriber's buffer and keep publishing. The fast
	// subscriber drains as it goes; publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			bc.Publish("job_1", snapshot("job_1", float64(i)))
			// drain fast so it survives
			select {
			case <-fast.C:
			default:
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// the slow subscriber's channel was closed when it was dropped
	drained := 0
	for range slow.C {
		drained++
	}
	if drained != subscriberBuffer {
		t.Fatalf("slow subscriber drained %d messages, want %d buffered before drop", drained, subscriberBuffer)
	}
	if got := bc.SubscriberCount("job_1"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1 (slow dropped, fast kept)", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bc := NewWithGrace(0)
	sub := bc.Subscribe("job_1")

	bc.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	// repeated unsubscribe must be safe
	bc.Unsubscribe(sub)

	if got := bc.SubscriberCount("job_1"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	bc := NewWithGrace(0)
	// must simply not panic or block
	bc.Publish("job_unknown", snapshot("job_unknown", 5))
}

func TestRetireClosesAllSubscribers(t *testing.T) {
	bc := NewWithGrace(0)
	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = bc.Subscribe("job_1")
	}

	bc.Publish("job_1", snapshot("job_1", 100))
	bc.Retire("job_1")

	for i, sub := range subs {
		got, ok := <-sub.C
		if !ok || got.Progress != 100 {
			t.Fatalf("subscriber %d missed final snapshot before close", i)
		}
		if _, ok := <-sub.C; ok {
			t.Fatalf("subscriber %d channel still open after retire", i)
		}
	}
	if got := bc.SubscriberCount("job_1"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0 after retire", got)
	}
}

func TestRetireGraceDelaysTeardown(t *testing.T) {
	bc := NewWithGrace(30 * time.Millisecond)
	sub := bc.Subscribe("job_1")

	bc.Retire("job_1")
	if got := bc.SubscriberCount("job_1"); got != 1 {
		t.Fatalf("subscriber torn down before grace expired")
	}

	deadline := time.After(time.Second)
	for bc.SubscriberCount("job_1") != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never torn down after grace")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after grace teardown")
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bc := NewWithGrace(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			bc.Publish("job_1", snapshot("job_1", float64(i%100)))
		}
	}()

	for i := 0; i < 20; i++ {
		sub := bc.Subscribe(fmt.Sprintf("job_%d", i%3))
		bc.Unsubscribe(sub)
	}
	<-done
}
