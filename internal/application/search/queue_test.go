package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func takeAsync(ctx context.Context, q *ResultQueue) <-chan *Result {
	ch := make(chan *Result, 1)
	go func() {
		r, err := q.Take(ctx)
		if err != nil {
			close(ch)
			return
		}
		ch <- r
	}()
	return ch
}

func TestResultQueue_GateOpensOnPoison(t *testing.T) {
	q := NewResultQueue(5)
	q.Put(&Result{ID: "c", Similarity: sim(0.2)})
	q.Put(&Result{ID: "a", Similarity: sim(0.9)})
	q.Put(&Result{ID: "b", Similarity: sim(0.5)})

	got := takeAsync(context.Background(), q)
	select {
	case <-got:
		t.Fatal("take returned before the gate opened")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, q.Ready())

	q.Put(PoisonResult)
	select {
	case r := <-got:
		require.NotNil(t, r)
		assert.Equal(t, "a", r.ID)
	case <-time.After(time.Second):
		t.Fatal("take still blocked after poison")
	}

	ctx := context.Background()
	r, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", r.ID)
	r, err = q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", r.ID)
	r, err = q.Take(ctx)
	require.NoError(t, err)
	assert.True(t, r.IsPoison())
}

func TestResultQueue_GateOpensAtThreshold(t *testing.T) {
	q := NewResultQueue(2)
	q.Put(&Result{ID: "x"})
	assert.False(t, q.Ready())
	q.Put(&Result{ID: "w"})
	assert.True(t, q.Ready())

	r, err := q.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w", r.ID)
	r, err = q.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", r.ID)

	// once open the gate stays open; an empty queue blocks until a put
	got := takeAsync(context.Background(), q)
	q.Put(&Result{ID: "late"})
	select {
	case r := <-got:
		require.NotNil(t, r)
		assert.Equal(t, "late", r.ID)
	case <-time.After(time.Second):
		t.Fatal("take blocked on an open gate")
	}
}

func TestResultQueue_TakeHonoursContext(t *testing.T) {
	q := NewResultQueue(0)
	q.Put(&Result{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx)
		errc <- err
	}()
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("take ignored cancellation")
	}
	assert.Equal(t, 1, q.Len())
}

func TestCandidateQueue_FIFO(t *testing.T) {
	q := newCandidateQueue()
	q.PutAll([]*Payload{{ID: "1"}, {ID: "2"}})
	q.Put(PoisonPayload)

	assert.Equal(t, "1", q.Take().ID)
	assert.Equal(t, "2", q.Take().ID)
	assert.True(t, q.Take().IsPoison())

	done := make(chan *Payload)
	go func() { done <- q.Take() }()
	q.Put(&Payload{ID: "3"})
	select {
	case p := <-done:
		assert.Equal(t, "3", p.ID)
	case <-time.After(time.Second):
		t.Fatal("take did not wake on put")
	}
}
