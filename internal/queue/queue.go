// Package queue implements the Session Queue: a bounded, FIFO
// producer/consumer ring buffer handed sessions by the Connection
// Acceptor and drained by the worker pool. It deliberately uses a
// sync.Mutex paired with sync.Cond rather than a buffered channel, the
// same primitive dittofs's offloader package uses for its upload/
// download coordination (ioCond), because the shutdown semantics need a
// broadcast that wakes every waiter regardless of which side of the
// buffer it is blocked on — something a channel close also gives a
// receiver, but not a still-blocked sender.
package queue

import (
	"errors"
	"sync"
)

// Session is the record the Connection Acceptor constructs and the
// worker pool consumes. It is immutable once constructed.
type Session struct {
	ID       uint32
	ReqPath  string
	RespPath string
}

// ErrShutdown is returned by Enqueue when the queue has been shut down;
// the session passed to Enqueue is not retained.
var ErrShutdown = errors.New("queue: shut down")

// Queue is a bounded FIFO ring buffer of *Session values.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	slots []*Session
	front int
	size  int

	shutdown bool
}

// New constructs a Queue with the given fixed capacity (MAX_SESSIONS in
// spec.md §3; the reference value is 8).
func New(capacity int) *Queue {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	q := &Queue{slots: make([]*Session, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Cap returns the queue's fixed capacity (MAX_SESSIONS).
func (q *Queue) Cap() int {
	return len(q.slots)
}

// Len returns the current number of queued sessions. Intended for
// diagnostics; the value may be stale the instant it is returned.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Enqueue blocks while the queue is full and not shut down. On shutdown
// it returns ErrShutdown without storing s. On success it stores s at
// rear, increments size, and signals notEmpty.
func (q *Queue) Enqueue(s *Session) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.slots) && !q.shutdown {
		q.notFull.Wait()
	}
	if q.shutdown {
		return ErrShutdown
	}

	rear := (q.front + q.size) % len(q.slots)
	q.slots[rear] = s
	q.size++
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks while the queue is empty and not shut down. On
// shutdown with an empty queue it returns (nil, false). On success it
// removes the front session, decrements size, and signals notFull.
func (q *Queue) Dequeue() (*Session, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		return nil, false
	}

	s := q.slots[q.front]
	q.slots[q.front] = nil
	q.front = (q.front + 1) % len(q.slots)
	q.size--
	q.notFull.Signal()
	return s, true
}

// Shutdown sets the shutdown flag under the lock and broadcasts both
// condition variables so every blocked Enqueue and Dequeue call wakes
// and observes the flag. Idempotent.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()

	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// ShuttingDown reports whether Shutdown has been called.
func (q *Queue) ShuttingDown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown
}
