// Package tick defers work to a later "tick", outside the caller's stack.
//
// Two schedulers are provided:
//
//   - Go runs every task on its own goroutine. Tasks may run in any order.
//   - Loop runs tasks one at a time on a single worker goroutine, in the
//     order they were deferred.
//
// Example usage:
//
//	loop := tick.NewLoop("callbacks")
//	loop.Start()
//	defer loop.Stop()
//
//	loop.Defer(func() {
//		// runs after the current call stack unwinds
//	})
package tick

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Scheduler defers a task to a later tick.
type Scheduler interface {
	Defer(task func())
}

// Go schedules every task on a fresh goroutine.
type Go struct{}

// Defer runs task on a new goroutine.
func (Go) Defer(task func()) {
	go task()
}

// Loop runs deferred tasks sequentially on one worker goroutine.
type Loop struct {
	name string

	mu      sync.Mutex
	pending []func()
	wakeCh  chan struct{}

	stopCh      chan struct{}
	doneCh      chan struct{}
	running     atomic.Bool
	lifecycleMu sync.Mutex
}

// NewLoop creates a stopped loop. The name only shows up in logs.
func NewLoop(name string) *Loop {
	return &Loop{
		name:   name,
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (l *Loop) Start() {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if l.running.Load() {
		return
	}

	l.running.Store(true)
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})

	log.Debug().Str("loop", l.name).Msg("Starting tick loop")

	go l.run()
}

// Stop runs every task still queued, then stops the worker. It waits for
// the worker, so a task must not call Stop on its own loop; use
// `go loop.Stop()` from a task instead.
func (l *Loop) Stop() {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if !l.running.Load() {
		return
	}

	// Flip the flag under mu so no task is queued after the final drain.
	l.mu.Lock()
	l.running.Store(false)
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh

	log.Debug().Str("loop", l.name).Msg("Tick loop stopped")
}

// IsRunning reports whether the worker goroutine is active.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Defer queues task. On a stopped loop the task runs on its own goroutine
// so it is never lost.
func (l *Loop) Defer(task func()) {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		log.Warn().Str("loop", l.name).Msg("Tick loop not running, deferring on a goroutine")
		go task()
		return
	}
	l.pending = append(l.pending, task)
	l.mu.Unlock()

	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.doneCh)

	for {
		select {
		case <-l.wakeCh:
			l.drain()
		case <-l.stopCh:
			l.drain()
			return
		}
	}
}

// drain runs queued tasks until the queue is empty.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		for _, task := range batch {
			l.runTask(task)
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("loop", l.name).
				Interface("panic", r).
				Msg("Deferred task panicked")
		}
	}()
	task()
}
