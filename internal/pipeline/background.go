package pipeline

import (
	"log"
	"sync"

	"github.com/mkern/psyche/internal/stage"
)

// Supervisor owns the background fan-out: a bounded queue and a single
// worker that runs detached stage work after responses have already
// been returned. A full queue drops the task rather than blocking the
// next request; a panicking task is contained and logged.
type Supervisor struct {
	tasks chan *stage.Context
	run   func(*stage.Context)

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewSupervisor builds a supervisor with the given queue capacity
// (minimum 1) and task body.
func NewSupervisor(queueSize int, run func(*stage.Context)) *Supervisor {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Supervisor{
		tasks: make(chan *stage.Context, queueSize),
		run:   run,
	}
}

// Start launches the worker. Safe to call once.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for rc := range s.tasks {
			s.safeRun(rc)
		}
	}()
}

// Stop refuses further submissions, drains queued tasks, and waits for
// the worker to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.tasks)
	s.mu.Unlock()

	s.wg.Wait()
}

// Submit enqueues background work. Never blocks: when the queue is full
// or the supervisor is stopped the task is dropped with a log line.
func (s *Supervisor) Submit(rc *stage.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		log.Printf("background %s: supervisor stopped, dropping task", rc.RequestID)
		return false
	}
	select {
	case s.tasks <- rc:
		return true
	default:
		log.Printf("background %s: queue full, dropping task", rc.RequestID)
		return false
	}
}

// Pending reports how many tasks are queued but not yet started.
func (s *Supervisor) Pending() int {
	return len(s.tasks)
}

func (s *Supervisor) safeRun(rc *stage.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("background %s: task panicked: %v", rc.RequestID, r)
		}
	}()
	s.run(rc)
}
