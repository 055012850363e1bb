package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue.
//
// Producers append to a linked list with CAS operations; a forwarding goroutine
// moves items in order onto the channel returned by Recv. Items pushed by one
// producer are delivered in the order they were pushed. Items from different
// producers are ordered by which Push completed first.
//
// After Close, Push is rejected, items already queued are still delivered and
// the Recv channel is closed once they have been drained.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan T
	closed atomic.Bool
	length atomic.Int64

	// pending counts producers between their closed check and their link,
	// the forwarder does not exit while one of them may still append
	pending atomic.Int64

	// mu guards the sleep/wake handshake of the forwarding goroutine
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a new queue and starts its forwarding goroutine
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.forward()

	return q
}

// Push adds an item to the queue.
// Returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value T) bool {
	// announce the producer before looking at closed, see forward
	q.pending.Add(1)
	if q.closed.Load() {
		q.pending.Add(-1)
		q.wake()
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may help moving the tail, that's fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)
				q.pending.Add(-1)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff under contention:
		  - few retries: spin with Gosched to avoid scheduler round trips
		  - more retries: yield to let the winning producer finish
		*/
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Recv returns the channel items are delivered on.
// The channel is closed after Close once every queued item was delivered.
func (q *LockFreeMPSC[T]) Recv() <-chan T {
	return q.out
}

// Close rejects further pushes. Already queued items are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items pushed but not yet handed to the consumer
func (q *LockFreeMPSC[T]) Len() int {
	// the forwarder may decrement before the producer increments
	if n := q.length.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// wake signals the forwarding goroutine. The signal is sent while holding mu:
// the forwarder re-checks the list under mu before sleeping, so a push that
// lands between its check and cond.Wait can't be missed.
func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// forward moves items from the linked list to the output channel
func (q *LockFreeMPSC[T]) forward() {
	defer close(q.out)

	var zero T
	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)
			q.length.Add(-1)

			q.out <- value

			// help the gc, the node is now the sentinel
			next.value = zero
			continue
		}

		// nothing queued: exit once closed and no producer is mid push,
		// otherwise sleep until woken. pending is read before the list: a
		// producer links its node before it leaves pending.
		q.mu.Lock()
		if q.closed.Load() && q.pending.Load() == 0 && q.head.Load().next.Load() == nil {
			q.mu.Unlock()
			return
		}
		if q.head.Load().next.Load() == nil {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}
