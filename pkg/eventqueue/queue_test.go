package eventqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ev(name string) Event {
	return Event{Message: name, Body: map[string]any{}}
}

func names(b Batch) []string {
	out := make([]string, len(b.Events))
	for i, e := range b.Events {
		out[i] = e.Message
	}
	return out
}

func TestQueueOldestFirst(t *testing.T) {
	q := NewQueue(8)
	for _, n := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ev(n)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", n, err)
		}
	}

	b, err := q.Poll(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got := names(b); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Poll() events = %v, want [a b c]", got)
	}
	if b.ID != 1 {
		t.Errorf("Poll() ID = %d, want 1", b.ID)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueFullRejectsNew(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue(ev("a"))
	q.Enqueue(ev("b"))
	if err := q.Enqueue(ev("c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() on full queue error = %v, want ErrQueueFull", err)
	}

	b, _ := q.Poll(context.Background(), 0, time.Second)
	if got := names(b); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Poll() events = %v, want [a b]", got)
	}
}

func TestQueueWaitingPollFlushedImmediately(t *testing.T) {
	q := NewQueue(8)
	got := make(chan Batch, 1)
	go func() {
		b, _ := q.Poll(context.Background(), 0, 5*time.Second)
		got <- b
	}()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	q.Enqueue(ev("a"))

	select {
	case b := <-got:
		if len(b.Events) != 1 || b.Events[0].Message != "a" {
			t.Errorf("Poll() = %+v, want one event a", b)
		}
		if time.Since(start) > time.Second {
			t.Error("waiting poll was not answered promptly")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting poll was not answered")
	}
}

func TestQueuePollTimeout(t *testing.T) {
	q := NewQueue(8)
	b, err := q.Poll(context.Background(), 0, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if b.Events == nil || len(b.Events) != 0 {
		t.Errorf("Poll() events = %#v, want empty non-nil slice", b.Events)
	}
}

func TestQueuePollSuperseded(t *testing.T) {
	q := NewQueue(8)
	first := make(chan error, 1)
	go func() {
		_, err := q.Poll(context.Background(), 0, 5*time.Second)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan Batch, 1)
	go func() {
		b, _ := q.Poll(context.Background(), 0, 5*time.Second)
		second <- b
	}()

	select {
	case err := <-first:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("first Poll() error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first poll was not superseded")
	}

	q.Enqueue(ev("a"))
	select {
	case b := <-second:
		if len(b.Events) != 1 {
			t.Errorf("second Poll() events = %d, want 1", len(b.Events))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second poll got nothing")
	}
}

func TestQueueRedeliversUnackedBatch(t *testing.T) {
	q := NewQueue(8)
	q.Enqueue(ev("a"))
	first, _ := q.Poll(context.Background(), 0, time.Second)

	// The response was lost: the client polls again with its old ack.
	again, err := q.Poll(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if again.ID != first.ID || len(again.Events) != 1 {
		t.Errorf("Poll() = %+v, want batch %d again", again, first.ID)
	}

	q.Enqueue(ev("b"))
	next, _ := q.Poll(context.Background(), first.ID, time.Second)
	if next.ID != first.ID+1 || len(next.Events) != 1 || next.Events[0].Message != "b" {
		t.Errorf("Poll() after ack = %+v, want batch %d with b", next, first.ID+1)
	}
}

func TestQueueCloseEndsPoll(t *testing.T) {
	q := NewQueue(8)
	done := make(chan error, 1)
	go func() {
		_, err := q.Poll(context.Background(), 0, 5*time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Poll() error = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not end the poll")
	}
	if err := q.Enqueue(ev("a")); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() after Close error = %v, want ErrClosed", err)
	}
}

func TestQueuePollCanceled(t *testing.T) {
	q := NewQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := q.Poll(ctx, 0, 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll() error = %v, want context.Canceled", err)
	}

	// A canceled poll leaves the queue usable.
	q.Enqueue(ev("a"))
	b, err := q.Poll(context.Background(), 0, time.Second)
	if err != nil || len(b.Events) != 1 {
		t.Errorf("Poll() = %+v, %v, want one event", b, err)
	}
}
