package bridge

import (
	"sync"
)

// Poster is the one-way outbound channel to the external subsystem.
// PostMessage is fire-and-forget: nothing comes back on this path.
type Poster interface {
	PostMessage(msg string)
}

// DefaultChannelSize is the buffer of a Channel created with size <= 0.
const DefaultChannelSize = 256

// Channel is a Poster backed by a buffered Go channel. PostMessage blocks only
// while the buffer is full; messages posted after Close are dropped, and a
// post blocked when Close is called gives up.
type Channel struct {
	ch      chan string
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

// NewChannel creates a channel holding up to size pending messages.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultChannelSize
	}
	return &Channel{
		ch:   make(chan string, size),
		done: make(chan struct{}),
	}
}

// PostMessage queues msg for the consumer.
func (c *Channel) PostMessage(msg string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.senders.Add(1)
	c.mu.Unlock()
	defer c.senders.Done()

	select {
	case c.ch <- msg:
	case <-c.done:
	}
}

// Messages is the consumer side.
func (c *Channel) Messages() <-chan string {
	return c.ch
}

// Close ends the stream; the consumer drains what is left. It does not wait
// for the consumer, so it returns even when nobody reads any more.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	// ch is closed only once no sender is inside PostMessage
	c.senders.Wait()
	close(c.ch)
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(msg string)

func (f PosterFunc) PostMessage(msg string) { f(msg) }

// Recorder is a Poster that keeps every message, for tests and diagnostics.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *Recorder) PostMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// Messages returns a copy of everything posted so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}
