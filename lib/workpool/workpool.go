package workpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Config describes the stages of a pool with worker state S and tasks T
type Config[S any, T any] struct {
	// Workers is the number of goroutines, at least one
	Workers int

	// QueueSize is the number of tasks buffered in front of the workers
	QueueSize int

	Init   func(worker int) (S, error)
	OnLoop func(state S, task T) error
	OnExit func(state S) // optional
}

// Pool distributes tasks over its workers.
//
// Thread-safety: Submit may be called concurrently. Close must be called once after
// the last Submit.
type Pool[S any, T any] struct {
	tasks  chan T
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	err       error
}

// New starts the workers and returns once every worker is initialized
func New[S any, T any](ctx context.Context, cfg Config[S, T]) (*Pool[S, T], error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workpool: need at least one worker, got %d", cfg.Workers)
	}
	if cfg.Init == nil || cfg.OnLoop == nil {
		return nil, fmt.Errorf("workpool: Init and OnLoop are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool[S, T]{
		tasks:  make(chan T, cfg.QueueSize),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
	}

	var (
		initWG     sync.WaitGroup
		initFailed atomic.Bool
	)
	initWG.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		id := i
		group.Go(func() error {
			state, err := cfg.Init(id)
			if err != nil {
				initFailed.Store(true)
				initWG.Done()
				return fmt.Errorf("workpool: worker %d failed to start: %w", id, err)
			}
			initWG.Done()
			if cfg.OnExit != nil {
				defer cfg.OnExit(state)
			}
			return p.loop(gctx, state, cfg.OnLoop)
		})
	}
	initWG.Wait()

	if initFailed.Load() {
		return nil, p.Close()
	}
	return p, nil
}

func (p *Pool[S, T]) loop(ctx context.Context, state S, onLoop func(S, T) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case task, ok := <-p.tasks:
			if !ok {
				return nil
			}
			if err := onLoop(state, task); err != nil {
				return err
			}
		}
	}
}

// Submit queues a task. It blocks while the queue is full and fails once the pool
// was cancelled.
func (p *Pool[S, T]) Submit(task T) error {
	// checked first, select picks randomly among ready cases
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("workpool: pool stopped: %w", err)
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("workpool: pool stopped: %w", p.ctx.Err())
	}
}

// Close lets the workers drain the queue, runs OnExit and returns the first
// worker error
func (p *Pool[S, T]) Close() error {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.err = p.group.Wait()
		p.cancel()
	})
	return p.err
}
