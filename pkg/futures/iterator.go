package futures

import (
	"io"
	"sync"
)

// item is one queue entry: an element, or the end-of-sequence marker
// optionally carrying the failure error. Using a tagged struct instead
// of a sentinel value keeps zero-valued elements unambiguous.
type item[E any] struct {
	elem E
	end  bool
	err  error
}

// Iterator is a blocking pull-style consumer of a Reactive future's
// element stream. Each iterator is independent and receives the full
// sequence (multicast, not work-distributed). Concurrent calls to Next
// on the same iterator are not supported; distinct iterators are safe.
//
// Next blocks indefinitely while the stream is open; callers wanting a
// timeout wrap the call externally.
type Iterator[E any] struct {
	// backlog is drained ahead of the queue without blocking.
	backlog []E

	mu    sync.Mutex
	cond  *sync.Cond
	queue []item[E]
	done  bool
	err   error
}

func newIterator[E any]() *Iterator[E] {
	it := &Iterator[E]{}
	it.cond = sync.NewCond(&it.mu)
	return it
}

// push enqueues an item from the producer side. The queue is unbounded;
// an abandoned iterator simply stops pulling and its queued elements are
// reclaimed with the iterator itself.
func (it *Iterator[E]) push(i item[E]) {
	it.mu.Lock()
	it.queue = append(it.queue, i)
	it.mu.Unlock()
	it.cond.Signal()
}

// Next returns the next element in the stream, blocking until one is
// available. It returns io.EOF once the stream has terminated normally,
// or the future's failure error if it failed. After returning a
// terminal error it keeps returning it.
func (it *Iterator[E]) Next() (E, error) {
	var zero E

	if len(it.backlog) > 0 {
		element := it.backlog[0]
		it.backlog = it.backlog[1:]
		return element, nil
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	for len(it.queue) == 0 && !it.done {
		it.cond.Wait()
	}
	if len(it.queue) == 0 {
		return zero, it.terminalErr()
	}

	next := it.queue[0]
	it.queue = it.queue[1:]
	if next.end {
		it.done = true
		it.err = next.err
		return zero, it.terminalErr()
	}
	return next.elem, nil
}

func (it *Iterator[E]) terminalErr() error {
	if it.err != nil {
		return it.err
	}
	return io.EOF
}
