/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package chancache implements a buffered in/out channel pair adapted
// from the teacher's chancacher: a pipeline stage that lets a producer
// (an ingestion worker) run ahead of a slower consumer (the host
// draining completed LoadingStates) up to a bounded depth, without the
// producer blocking on every send. The original's disk-spill half is
// dropped — see DESIGN.md's "Dropped teacher dependencies" for why.
package chancache

// MaxDepth caps Cache's internal buffer, mirroring the teacher's
// chancacher.MaxDepth sanity ceiling (unbounded buffering just trades
// an OOM for a full channel).
const MaxDepth = 1000000

// Cache is a pipeline of channels with a bounded internal buffer: a
// value sent to In becomes available on Out, blocking the sender only
// once Out's buffer is full, exactly like the teacher's ChanCacher
// with caching disabled.
type Cache[T any] struct {
	In  chan T
	Out chan T
}

// New starts a Cache with the given buffer depth (a depth of zero or
// less, or above MaxDepth, becomes MaxDepth) and begins pumping In to
// Out in a background goroutine.
func New[T any](depth int) *Cache[T] {
	if depth <= 0 || depth > MaxDepth {
		depth = MaxDepth
	}
	c := &Cache[T]{
		In:  make(chan T),
		Out: make(chan T, depth),
	}
	go c.run()
	return c
}

func (c *Cache[T]) run() {
	for v := range c.In {
		c.Out <- v
	}
	close(c.Out)
}

// BufferSize returns the number of values currently queued on Out.
func (c *Cache[T]) BufferSize() int { return len(c.Out) }
