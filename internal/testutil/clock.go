package testutil

import "sync"

// DeterministicClock is a logical clock for tests that remembers every
// seq it handed out, so a test can tell how many history entries an
// executor stored.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu     sync.Mutex
	issued []int64
}

// NewDeterministicClock creates a clock whose first Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := int64(len(c.issued) + 1)
	c.issued = append(c.issued, seq)
	return seq
}

// Issued returns the sequence numbers handed out so far.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.issued...)
}

// Reset forgets every issued number; the next call returns 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued = nil
}
