package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/incr/internal/history"
)

// Clock hands out the seq numbers stamped on history entries.
//
// History is ordered by seq, never by wall time, so listings are
// reproducible regardless of clock skew between machines.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// ResumeClock creates a clock continuing after the highest seq in store,
// so entries written by this process sort after every earlier one.
func ResumeClock(ctx context.Context, store history.Store) (*Clock, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	var last int64
	for _, r := range records {
		last = max(last, r.Entry.Seq)
	}
	return NewClockAt(last), nil
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
