// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package queue holds paper records waiting for a worker. Items leave the
// queue in ready-time order and come back when an attempt fails and is
// scheduled for retry.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Item is one record together with the attempt it is about to run.
type Item struct {
	Record  types.PaperRecord
	Attempt int

	readyAt time.Time
}

// Queue is a work queue with delayed requeue and drain detection. It is
// safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	pending  []Item
	inFlight int
	changed  chan struct{}
	now      func() time.Time
}

// New creates a queue holding every record at attempt 1.
func New(records []types.PaperRecord) *Queue {
	q := &Queue{
		pending: make([]Item, 0, len(records)),
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, r := range records {
		q.pending = append(q.pending, Item{Record: r, Attempt: 1})
	}
	return q
}

// Dequeue blocks until an item is ready and marks it in flight. It returns
// ok=false once the queue is drained: nothing pending and nothing in flight.
// A done context returns its error.
func (q *Queue) Dequeue(ctx context.Context) (item Item, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 && q.inFlight == 0 {
			q.mu.Unlock()
			return Item{}, false, nil
		}

		now := q.now()
		next := -1
		var wait time.Duration
		for i, it := range q.pending {
			if !it.readyAt.After(now) {
				next = i
				break
			}
			if d := it.readyAt.Sub(now); wait == 0 || d < wait {
				wait = d
			}
		}
		if next >= 0 {
			item = q.pending[next]
			q.pending = append(q.pending[:next], q.pending[next+1:]...)
			q.inFlight++
			q.mu.Unlock()
			return item, true, nil
		}
		changed := q.changed
		q.mu.Unlock()

		var (
			t     *time.Timer
			timer <-chan time.Time
		)
		if wait > 0 {
			t = time.NewTimer(wait)
			timer = t.C
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-changed:
		case <-timer:
		}
		if t != nil {
			t.Stop()
		}
		if err != nil {
			return Item{}, false, err
		}
	}
}

// Requeue returns an in-flight item for another attempt after delay.
func (q *Queue) Requeue(item Item, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.Attempt++
	item.readyAt = q.now().Add(delay)
	q.pending = append(q.pending, item)
	q.inFlight--
	q.broadcast()
}

// Done retires an in-flight item.
func (q *Queue) Done(Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	q.broadcast()
}

// Len returns the number of pending and in-flight items.
func (q *Queue) Len() (pending, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), q.inFlight
}

// broadcast wakes every blocked Dequeue. Callers hold mu.
func (q *Queue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}
