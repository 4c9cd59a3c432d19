package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/incr/internal/work"
)

// Session runs units one after another through an Executor, in the order
// they were submitted.
//
// Thread-safety model:
//   - Submit and Close: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Units never run concurrently. A unit identity may be submitted once per
// session; running it twice would compare it against its own fresh history.
type Session struct {
	exec      *Executor
	queue     *unitQueue
	keepGoing bool
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithKeepGoing keeps running the remaining units after a failure.
func WithKeepGoing(keepGoing bool) SessionOption {
	return func(s *Session) {
		s.keepGoing = keepGoing
	}
}

// NewSession creates a session over exec.
func NewSession(exec *Executor, opts ...SessionOption) *Session {
	s := &Session{
		exec:   exec,
		queue:  newUnitQueue(),
		logger: exec.logger,
		seen:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrSessionClosed is returned by Submit after Close.
var ErrSessionClosed = errors.New("session closed")

// Submit queues a unit.
func (s *Session) Submit(unit work.UnitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := unit.Identity()
	if s.seen[id] {
		return fmt.Errorf("unit %s submitted twice", id)
	}
	if !s.queue.Enqueue(unit) {
		return ErrSessionClosed
	}
	s.seen[id] = true
	return nil
}

// Close stops accepting units. Run returns once the queued units are done.
func (s *Session) Close() {
	s.queue.Close()
}

// Run executes queued units until the session is closed and drained, the
// context is cancelled, or a unit fails without WithKeepGoing. Results are
// returned in execution order, including those of failed units. The error
// joins every unit failure.
func (s *Session) Run(ctx context.Context) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for {
		unit, ok := s.queue.TryDequeue()
		if ok {
			res, err := s.exec.Execute(ctx, unit)
			if res != nil {
				results = append(results, res)
			}
			if err != nil {
				errs = append(errs, err)
				if !s.keepGoing {
					s.queue.Close()
					s.logger.Info("session stopping: unit failed", "unit", unit.DisplayName(), "skipped", s.queue.Len())
					return results, errors.Join(errs...)
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.queue.Close()
			return results, errors.Join(append(errs, ctx.Err())...)
		case <-s.queue.Wait():
			if s.queue.Len() == 0 && s.closed() {
				return results, errors.Join(errs...)
			}
		}
	}
}

func (s *Session) closed() bool {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	return s.queue.closed
}
