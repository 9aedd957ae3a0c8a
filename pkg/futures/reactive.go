package futures

import (
	"context"
	"sync"
)

// Collector accumulates elements provided to a Reactive future before
// streaming begins and produces the future's final value when the stream
// was never consumed element-by-element. Its methods are only invoked
// under the future's state lock; implementations need no locking of
// their own against the future.
type Collector[T, E any] interface {
	// Accumulate stores one element of backlog.
	Accumulate(element E)

	// Drain returns the backlog accumulated so far and releases it; it
	// is called at most once.
	Drain() []E

	// Complete builds the final value from the accumulated backlog.
	Complete() T
}

// Reactive is a single-assignment future extended with a multicast
// element stream. The producer pushes elements with Provide, opens the
// stream with Release and terminates with Finish or Fail; consumers
// attach as observers (callback-style) or iterators (blocking pull).
// Every consumer sees a gap-free, non-duplicated element sequence
// regardless of when it registered relative to production:
//
//   - Elements provided before Release accumulate as backlog.
//   - The backlog is drained exactly once, to every consumer registered
//     at that moment; the drain happens at Release if consumers exist,
//     otherwise at the first registration afterwards.
//   - Consumers registering after the drain receive only elements
//     provided from their registration forward.
//
// All state transitions share one mutex; observer callbacks run on each
// observer's own Executor and never inline under the lock's critical
// producer path.
type Reactive[T, E any] struct {
	result    *Future[T]
	collector Collector[T, E]

	mu        sync.Mutex
	observers []Observer[E]
	iterators []*Iterator[E]
	streaming bool
	drained   bool
}

// NewReactive creates a pending reactive future over the given collector.
func NewReactive[T, E any](collector Collector[T, E]) *Reactive[T, E] {
	return &Reactive[T, E]{
		result:    NewFuture[T](),
		collector: collector,
	}
}

// Provide offers one element to the stream. Before Release the element
// joins the backlog; afterwards it is dispatched live to the consumers
// registered at that instant (and is dropped if there are none). It
// reports whether the element was accepted; a resolved future accepts
// nothing.
func (r *Reactive[T, E]) Provide(element E) bool {
	if r.result.Done() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result.Done() {
		return false
	}

	if !r.streaming {
		r.collector.Accumulate(element)
		return true
	}
	r.dispatchLocked(element)
	return true
}

// Release is called by the future's creator to begin streaming to
// iterators and observers. It is idempotent. If consumers are already
// registered the backlog is flushed to all of them now; otherwise the
// first registration performs the flush.
func (r *Reactive[T, E]) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streaming {
		return
	}
	r.streaming = true

	if len(r.observers) == 0 && len(r.iterators) == 0 {
		return
	}
	r.drainLocked(nil)
}

// Finish is called by the future's creator once production is complete.
// If the backlog was drained to consumers, the future resolves to the
// zero value; otherwise it resolves to the collector's final value. On
// successful resolution every observer is notified of completion and
// every iterator terminates. It reports whether this call resolved the
// future.
func (r *Reactive[T, E]) Finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ok bool
	if r.drained {
		var zero T
		ok = r.result.Complete(zero)
	} else {
		ok = r.result.Complete(r.collector.Complete())
	}
	if !ok {
		return false
	}

	for _, obs := range r.observers {
		obs := obs
		obs.Executor().Execute(obs.OnComplete)
	}
	for _, it := range r.iterators {
		it.push(item[E]{end: true})
	}
	return true
}

// Fail resolves the future with err. It is single-assignment: if the
// future already resolved or failed it reports false and changes
// nothing. On success every observer's OnError runs on its own executor
// and every blocked iterator unblocks with the error.
func (r *Reactive[T, E]) Fail(err error) bool {
	if !r.result.Fail(err) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, obs := range r.observers {
		obs := obs
		obs.Executor().Execute(func() { obs.OnError(err) })
	}
	for _, it := range r.iterators {
		it.push(item[E]{end: true, err: err})
	}
	return true
}

// AddObserver registers an observer. If streaming has begun and the
// backlog is still pending, this registration drains it to every
// registered consumer, this observer included. If the future is already
// resolved the observer is immediately notified on its executor.
func (r *Reactive[T, E]) AddObserver(obs Observer[E]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, obs)

	if r.streaming && !r.drained {
		r.drainLocked(nil)
	}

	if r.result.Done() {
		err := r.result.Err()
		obs.Executor().Execute(func() {
			if err != nil {
				obs.OnError(err)
			} else {
				obs.OnComplete()
			}
		})
	}
}

// Iterator returns a new blocking pull-style consumer. If streaming has
// begun and the backlog is still pending, the backlog is drained now:
// the new iterator holds it as a local cursor (no blocking to read it)
// while every previously registered consumer receives it through its
// own delivery path. If the future is already resolved the iterator
// terminates without blocking once its backlog is exhausted.
func (r *Reactive[T, E]) Iterator() *Iterator[E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	it := newIterator[E]()
	r.iterators = append(r.iterators, it)

	if r.streaming && !r.drained {
		r.drainLocked(it)
	}

	if r.result.Done() {
		it.push(item[E]{end: true, err: r.result.Err()})
	}
	return it
}

// Done reports whether the future has resolved.
func (r *Reactive[T, E]) Done() bool { return r.result.Done() }

// Err returns the failure error, if any.
func (r *Reactive[T, E]) Err() error { return r.result.Err() }

// Wait blocks until the future resolves or ctx is cancelled.
func (r *Reactive[T, E]) Wait(ctx context.Context) error { return r.result.Wait(ctx) }

// Result blocks until the future resolves, then returns its value or
// error. On the streaming path the value is the zero value; the element
// sequence was the result.
func (r *Reactive[T, E]) Result(ctx context.Context) (T, error) { return r.result.Result(ctx) }

// drainLocked flushes the backlog to every registered consumer exactly
// once. cursor, if non-nil, is a just-created iterator that takes the
// backlog as a local cursor instead of queued items.
func (r *Reactive[T, E]) drainLocked(cursor *Iterator[E]) {
	r.drained = true
	backlog := r.collector.Drain()
	if len(backlog) == 0 {
		return
	}
	if cursor != nil {
		cursor.backlog = backlog
	}
	for _, element := range backlog {
		for _, obs := range r.observers {
			obs := obs
			element := element
			obs.Executor().Execute(func() { obs.OnNext(element) })
		}
		for _, it := range r.iterators {
			if it == cursor {
				continue
			}
			it.push(item[E]{elem: element})
		}
	}
}

// dispatchLocked broadcasts one live element to every registered consumer.
func (r *Reactive[T, E]) dispatchLocked(element E) {
	for _, obs := range r.observers {
		obs := obs
		obs.Executor().Execute(func() { obs.OnNext(element) })
	}
	for _, it := range r.iterators {
		it.push(item[E]{elem: element})
	}
}
