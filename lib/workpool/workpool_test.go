package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterState is the per worker state used by the tests
type counterState struct {
	id     int
	seen   int
	exited bool
}

func TestAllTasksProcessed(t *testing.T) {
	defer leaktest.Check(t)()

	var (
		mu     sync.Mutex
		states []*counterState
		sum    atomic.Int64
	)
	pool, err := New(context.Background(), Config[*counterState, int]{
		Workers:   4,
		QueueSize: 8,
		Init: func(id int) (*counterState, error) {
			s := &counterState{id: id}
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
			return s, nil
		},
		OnLoop: func(s *counterState, task int) error {
			s.seen++
			sum.Add(int64(task))
			return nil
		},
		OnExit: func(s *counterState) { s.exited = true },
	})
	require.NoError(t, err)

	for i := 1; i <= 1000; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Close())

	assert.Equal(t, int64(500500), sum.Load())
	require.Len(t, states, 4)
	total := 0
	for _, s := range states {
		assert.True(t, s.exited, "worker %d did not run OnExit", s.id)
		total += s.seen
	}
	assert.Equal(t, 1000, total)

	// closing twice returns the same result
	assert.NoError(t, pool.Close())
}

func TestInitFailure(t *testing.T) {
	defer leaktest.Check(t)()

	var exits atomic.Int32
	_, err := New(context.Background(), Config[int, int]{
		Workers: 3,
		Init: func(id int) (int, error) {
			if id == 1 {
				return 0, errors.New("connection refused")
			}
			return id, nil
		},
		OnLoop: func(int, int) error { return nil },
		OnExit: func(int) { exits.Add(1) },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(2), exits.Load(), "initialized workers must still exit")
}

func TestLoopErrorStopsPool(t *testing.T) {
	defer leaktest.Check(t)()

	boom := errors.New("boom")
	pool, err := New(context.Background(), Config[struct{}, int]{
		Workers: 2,
		Init:    func(int) (struct{}, error) { return struct{}{}, nil },
		OnLoop: func(_ struct{}, task int) error {
			if task == 3 {
				return boom
			}
			return nil
		},
	})
	require.NoError(t, err)

	// submitting eventually fails once the error cancelled the pool
	var submitErr error
	for i := 0; i < 100000 && submitErr == nil; i++ {
		submitErr = pool.Submit(i)
	}
	assert.Error(t, submitErr)
	assert.ErrorIs(t, pool.Close(), boom)
}

func TestParentContextCancel(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	pool, err := New(ctx, Config[struct{}, int]{
		Workers: 1,
		Init:    func(int) (struct{}, error) { return struct{}{}, nil },
		OnLoop:  func(struct{}, int) error { return nil },
	})
	require.NoError(t, err)

	cancel()
	assert.Error(t, pool.Submit(1))
	assert.NoError(t, pool.Close())
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config[int, int]{Workers: 0})
	assert.Error(t, err)
	_, err = New(context.Background(), Config[int, int]{Workers: 1})
	assert.Error(t, err)
}
