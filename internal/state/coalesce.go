package state

import (
	"sync"
	"time"
)

// DefaultFlushInterval bounds reconciliation to roughly one flush per frame.
const DefaultFlushInterval = 16 * time.Millisecond

// Coalescer buffers normalized events for a bounded window and collapses
// same-key events to their most recent payload before each flush. A superseded
// entry is nulled in place, so distinct keys keep their relative arrival order
// while only the latest payload per key survives to reconciliation.
//
// Flushes fire on a trailing-edge timer: the first event after a quiet
// period flushes almost immediately, a burst flushes once per interval.
type Coalescer struct {
	mu        sync.Mutex
	interval  time.Duration
	apply     func([]Event)
	queue     []Event        // nil entries are superseded no-ops
	index     map[string]int // coalesce key → queue position
	timer     *time.Timer
	lastFlush time.Time
	closed    bool
}

// NewCoalescer creates a scheduler that delivers batches to apply. The apply
// callback runs with the coalescer's internal lock held, so flushes are
// strictly ordered: a new flush cannot start while one is being applied.
func NewCoalescer(interval time.Duration, apply func([]Event)) *Coalescer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Coalescer{
		interval: interval,
		apply:    apply,
		index:    make(map[string]int),
	}
}

// Add queues an event and schedules a trailing-edge flush if none is pending.
func (c *Coalescer) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if key := e.coalesceKey(); key != "" {
		if i, ok := c.index[key]; ok {
			c.queue[i] = nil
		}
		c.index[key] = len(c.queue)
	}
	c.queue = append(c.queue, e)

	if c.timer == nil {
		delay := c.interval - time.Since(c.lastFlush)
		if delay < 0 {
			delay = 0
		}
		c.timer = time.AfterFunc(delay, c.Flush)
	}
}

// Flush synchronously applies everything buffered as one batch. It is called
// by the trailing-edge timer and directly on teardown.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Close flushes anything buffered and stops accepting events.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	c.closed = true
}

func (c *Coalescer) flushLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.queue) == 0 {
		c.lastFlush = time.Now()
		return
	}

	batch := make([]Event, 0, len(c.queue))
	for _, e := range c.queue {
		if e != nil {
			batch = append(batch, e)
		}
	}
	c.queue = nil
	c.index = make(map[string]int)
	c.lastFlush = time.Now()

	c.apply(batch)
}
