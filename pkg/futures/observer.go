package futures

// Executor runs observer callbacks. Each observer supplies its own, so
// callbacks land on the execution context the consumer chose rather than
// on the producer's goroutine. Execute must not block the caller.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute calls f.
func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// GoExecutor runs each callback on its own goroutine.
type GoExecutor struct{}

// Execute runs fn on a new goroutine.
func (GoExecutor) Execute(fn func()) { go fn() }

// Observer consumes a Reactive future's element stream callback-style.
// Exactly one of OnComplete or OnError terminates the stream; both are
// delivered, like OnNext, through the observer's Executor.
type Observer[E any] interface {
	OnNext(element E)
	OnComplete()
	OnError(err error)
	Executor() Executor
}

// ObserverFuncs is an Observer assembled from optional functions. Nil
// callbacks are skipped; a nil Exec falls back to GoExecutor.
type ObserverFuncs[E any] struct {
	Next     func(element E)
	Complete func()
	Error    func(err error)
	Exec     Executor
}

func (o *ObserverFuncs[E]) OnNext(element E) {
	if o.Next != nil {
		o.Next(element)
	}
}

func (o *ObserverFuncs[E]) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

func (o *ObserverFuncs[E]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o *ObserverFuncs[E]) Executor() Executor {
	if o.Exec != nil {
		return o.Exec
	}
	return GoExecutor{}
}
