package engine

import (
	"context"
	"time"

	"github.com/adi-miller/irrigate/internal/schedule"
	"github.com/adi-miller/irrigate/internal/valve"
)

// queueCapacity bounds pending jobs. A full queue means scheduling is far
// ahead of the worker pool; further jobs are dropped with an error log.
const queueCapacity = 64

// Job is one pending irrigation cycle.
type Job struct {
	Valve       *valve.Valve
	DurationSec int
	// Schedule is the rule that produced the job; nil for jobs queued over
	// MQTT.
	Schedule *schedule.Schedule
	// Source tags where the job came from, for logging ("schedule", "mqtt").
	Source string
}

// Queue is a bounded FIFO of jobs shared by the timer loop, the command
// handler, and the worker pool.
type Queue struct {
	ch chan *Job
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *Job, capacity)}
}

// Enqueue adds a job without blocking. It reports false when the queue is
// full; the caller decides whether to log or drop.
func (q *Queue) Enqueue(j *Job) bool {
	select {
	case q.ch <- j:
		return true
	default:
		return false
	}
}

// Dequeue waits up to timeout for a job. It returns (nil, false) on timeout
// or context cancellation, letting workers re-check for shutdown.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return nil, false
	case j := <-q.ch:
		return j, true
	case <-t.C:
		return nil, false
	}
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}
