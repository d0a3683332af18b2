package store

import "sync/atomic"

// Counter is a tiny shared counter kept for the demo tab.
type Counter struct {
	n atomic.Int64
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 { return c.n.Add(1) }

// Decrement subtracts one and returns the new value.
func (c *Counter) Decrement() int64 { return c.n.Add(-1) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }
