// Package output is the hand-off queue between collection engines and the
// write-back stage. It is constructed once and passed to both sides.
package output

import (
	"context"
	"errors"
	"sync"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
)

// ErrClosed is returned by Publish after Close, and by Receive once a
// closed channel is drained.
var ErrClosed = errors.New("output channel closed")

// Channel is an unbounded multi-producer, single-consumer queue of batches.
// Batches are enqueued whole; a consumer never sees part of one.
type Channel struct {
	mu     sync.Mutex
	queue  []collector.Batch
	notify chan struct{}
	closed bool

	onLen func(int)
}

// New returns an empty channel. onLen, if non-nil, observes the queue length
// after every change; it runs under the channel lock and must not block.
func New(onLen func(int)) *Channel {
	return &Channel{notify: make(chan struct{}, 1), onLen: onLen}
}

// Publish enqueues b. Empty batches are accepted and delivered.
func (c *Channel) Publish(b collector.Batch) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, b)
	c.observe(len(c.queue))
	c.mu.Unlock()

	c.wake()
	return nil
}

// TryReceive dequeues the oldest batch without blocking.
func (c *Channel) TryReceive() (collector.Batch, bool) {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return collector.Batch{}, false
	}
	b := c.queue[0]
	c.queue[0] = collector.Batch{}
	c.queue = c.queue[1:]
	c.observe(len(c.queue))
	c.mu.Unlock()

	return b, true
}

// Receive blocks until a batch is available, ctx is done, or the channel is
// closed and drained.
func (c *Channel) Receive(ctx context.Context) (collector.Batch, error) {
	for {
		if b, ok := c.TryReceive(); ok {
			return b, nil
		}
		c.mu.Lock()
		closed := c.closed && len(c.queue) == 0
		c.mu.Unlock()
		if closed {
			return collector.Batch{}, ErrClosed
		}
		select {
		case <-ctx.Done():
			return collector.Batch{}, ctx.Err()
		case <-c.notify:
		}
	}
}

// Len reports the number of queued batches.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close stops accepting batches. Queued batches can still be received.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()
}

func (c *Channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Channel) observe(n int) {
	if c.onLen != nil {
		c.onLen(n)
	}
}
