package channel

import (
	"encoding/json"
	"sync"
)

// queue is an unbounded FIFO shared by the two endpoints of one direction.
// A closed queue keeps yielding already-queued messages until drained, then
// reports ErrClosed; this mirrors a close sentinel travelling behind the
// queued traffic.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []json.RawMessage
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) put(msg json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
	return nil
}

func (q *queue) take() (json.RawMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) > 0 {
		msg := q.items[0]
		q.items = q.items[1:]
		return msg, nil
	}
	return nil, ErrClosed
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// inMemory is one endpoint of an in-memory duplex pair
type inMemory struct {
	in  *queue
	out *queue
}

// NewPair creates two connected in-memory channels. Messages sent on one
// endpoint arrive, in order, at the other endpoint's Receive.
func NewPair() (Channel, Channel) {
	a := newQueue()
	b := newQueue()
	return &inMemory{in: a, out: b}, &inMemory{in: b, out: a}
}

// Send writes one message toward the peer
func (c *inMemory) Send(msg json.RawMessage) error {
	return c.out.put(msg)
}

// Receive blocks until the next inbound message arrives
func (c *inMemory) Receive() (json.RawMessage, error) {
	return c.in.take()
}

// Close signals the opposite reader that no more messages will arrive
func (c *inMemory) Close() error {
	c.out.close()
	return nil
}

// Halt unblocks this side's reader
func (c *inMemory) Halt() {
	c.in.close()
}
