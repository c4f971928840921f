package eventqueue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue holds its maximum.
	ErrQueueFull = errors.New("eventqueue: queue full")

	// ErrClosed is returned once the queue's circuit is gone.
	ErrClosed = errors.New("eventqueue: closed")

	// ErrSuperseded is returned to a poll replaced by a newer one.
	ErrSuperseded = errors.New("eventqueue: poll superseded")

	// ErrNoQueue is returned when a circuit has no registered queue.
	ErrNoQueue = errors.New("eventqueue: no queue for circuit")
)

// Event is one message in structured form.
type Event struct {
	Message string         `json:"message"`
	Body    map[string]any `json:"body"`
}

// Batch is one poll response. ID grows by one for every non-empty batch.
type Batch struct {
	ID     int     `json:"id"`
	Events []Event `json:"events"`
}

// Queue buffers events for one circuit and serves one poll at a time.
type Queue struct {
	max int

	mu      sync.Mutex
	events  []Event
	last    Batch
	notify  chan struct{}
	poller  chan struct{}
	closed  bool
	done    chan struct{}
	onDrain func(n int)
}

// NewQueue creates a queue holding at most limit undelivered events.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 1
	}
	return &Queue{
		max:    limit,
		notify: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Len returns the number of undelivered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Enqueue appends an event and wakes the waiting poll, if any. A full
// queue rejects the new event; events already queued keep their order.
func (q *Queue) Enqueue(ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if len(q.events) >= q.max {
		return ErrQueueFull
	}
	q.events = append(q.events, ev)
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

// Poll waits up to timeout for events and returns them oldest first.
//
// ack is the ID of the last batch the caller received. When it does not
// match the last batch handed out, that batch is returned again so a lost
// response is not lost events. A poll that times out returns an empty
// batch. Starting a poll ends the one already waiting with ErrSuperseded.
func (q *Queue) Poll(ctx context.Context, ack int, timeout time.Duration) (Batch, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Batch{}, ErrClosed
	}
	if q.last.ID != 0 && ack != q.last.ID {
		b := q.last
		q.mu.Unlock()
		return b, nil
	}
	if q.poller != nil {
		close(q.poller)
	}
	mine := make(chan struct{})
	q.poller = mine
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.poller != mine {
			q.mu.Unlock()
			return Batch{}, ErrSuperseded
		}
		if len(q.events) > 0 {
			b := q.takeLocked()
			q.poller = nil
			q.mu.Unlock()
			return b, nil
		}
		notify := q.notify
		q.mu.Unlock()

		select {
		case <-notify:
		case <-mine:
			return Batch{}, ErrSuperseded
		case <-q.done:
			return Batch{}, ErrClosed
		case <-timer.C:
			return q.release(mine), nil
		case <-ctx.Done():
			q.release(mine)
			return Batch{}, ctx.Err()
		}
	}
}

// takeLocked moves every queued event into a new batch.
func (q *Queue) takeLocked() Batch {
	b := Batch{ID: q.last.ID + 1, Events: q.events}
	q.events = nil
	q.last = b
	if q.onDrain != nil {
		q.onDrain(len(b.Events))
	}
	return b
}

// release ends poll mine without events.
func (q *Queue) release(mine chan struct{}) Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.poller == mine {
		q.poller = nil
	}
	return Batch{ID: q.last.ID, Events: []Event{}}
}

// Close discards queued events and ends the waiting poll.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.events = nil
	close(q.done)
}
