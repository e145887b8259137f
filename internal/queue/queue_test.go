// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/paper-triage/pkg/types"
)

func records(n int) []types.PaperRecord {
	out := make([]types.PaperRecord, n)
	for i := range out {
		out[i] = types.PaperRecord{ID: fmt.Sprintf("2401.%05d", i+1)}
	}
	return out
}

func TestDequeue_DrainsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(3))
	ctx := context.Background()

	var got []string
	for {
		it, ok, err := q.Dequeue(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, 1, it.Attempt)
		got = append(got, it.Record.ID)
		q.Done(it)
	}
	assert.Equal(t, []string{"2401.00001", "2401.00002", "2401.00003"}, got)

	pending, inFlight := q.Len()
	assert.Zero(t, pending)
	assert.Zero(t, inFlight)
}

func TestDequeue_EmptyQueueIsDrained(t *testing.T) {
	q := New(nil)
	_, ok, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeue_WaitsForInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(1))
	ctx := context.Background()

	first, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	result := make(chan Item, 1)
	go func() {
		it, ok, err := q.Dequeue(ctx)
		if err == nil && ok {
			result <- it
		}
		close(result)
	}()

	// The second Dequeue must block while the first item is in flight and
	// then receive it once requeued.
	select {
	case <-result:
		t.Fatal("Dequeue returned while an item was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	q.Requeue(first, 0)
	it, ok := <-result
	require.True(t, ok)
	assert.Equal(t, first.Record.ID, it.Record.ID)
	assert.Equal(t, 2, it.Attempt)
	q.Done(it)
}

func TestDequeue_ReturnsFalseWhenLastInFlightIsDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(1))
	ctx := context.Background()
	it, _, _ := q.Dequeue(ctx)

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Done(it)
	assert.False(t, <-done)
}

func TestRequeue_HonorsDelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(1))
	ctx := context.Background()

	it, _, _ := q.Dequeue(ctx)
	start := time.Now()
	q.Requeue(it, 30*time.Millisecond)

	again, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, 2, again.Attempt)
	q.Done(again)
}

func TestRequeue_ReadyItemsAreNotBlockedByDelayedOnes(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(2))
	ctx := context.Background()

	a, _, _ := q.Dequeue(ctx)
	q.Requeue(a, time.Hour)

	b, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2401.00002", b.Record.ID)
	q.Done(b)
}

func TestDequeue_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(records(1))
	it, _, _ := q.Dequeue(context.Background())
	q.Requeue(it, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := q.Dequeue(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentConsumers(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 200
	q := New(records(n))
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, ok, err := q.Dequeue(ctx)
				if err != nil || !ok {
					return
				}
				// Every item fails once before succeeding.
				if it.Attempt == 1 {
					q.Requeue(it, 0)
					continue
				}
				mu.Lock()
				seen[it.Record.ID]++
				mu.Unlock()
				q.Done(it)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, c := range seen {
		assert.Equal(t, 1, c, "record %s", id)
	}
}
