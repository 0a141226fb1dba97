package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrSerializerClosed = errors.New("write serializer is closed")

// defaultBacklog bounds how many admitted operations may wait for the worker.
const defaultBacklog = 64

type writeOp struct {
	run  func() error
	done chan error
}

// WriteSerializer runs submitted operations one at a time, in the order they were admitted,
// on a single worker goroutine. Each caller receives the result of its own operation.
// Operations must not call Submit on the same serializer.
type WriteSerializer struct {
	mu      sync.RWMutex
	closed  bool
	ops     chan writeOp
	stopped chan struct{}
}

// NewWriteSerializer starts the worker. backlog <= 0 selects a default.
func NewWriteSerializer(backlog int) *WriteSerializer {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	s := &WriteSerializer{
		ops:     make(chan writeOp, backlog),
		stopped: make(chan struct{}),
	}
	go s.worker()
	return s
}

// Submit enqueues op and waits for its result. ctx bounds only the wait for admission:
// once admitted, op runs to completion and Submit returns its error.
func (s *WriteSerializer) Submit(ctx context.Context, op func() error) error {
	w := writeOp{run: op, done: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSerializerClosed
	}
	select {
	case s.ops <- w:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	return <-w.done
}

// Close stops admitting new operations, then waits for every admitted one to finish.
// It is safe to call more than once.
func (s *WriteSerializer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ops)
	}
	s.mu.Unlock()
	<-s.stopped
}

func (s *WriteSerializer) worker() {
	defer close(s.stopped)
	for w := range s.ops {
		w.done <- execute(w.run)
	}
}

// execute runs op, turning a panic into an error so the worker survives it.
func execute(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write operation panicked: %v", r)
		}
	}()
	return op()
}
