// Package concurrency implements helpers to run independent tasks concurrently.
package concurrency

import (
	"runtime"
	"sync"
)

// ParallelFor calls f(i) for each i in [0, n). The calls are spread over
// at most GOMAXPROCS goroutines when work, the estimated cost of the whole
// loop, is at least threshold; otherwise they run sequentially on the
// calling goroutine. f must be safe to call concurrently for distinct i.
func ParallelFor(n, work, threshold int, f func(i int)) {

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}

	if work < threshold || workers < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := w; i < n; i += workers {
				f(i)
			}
		}(w)
	}
	wg.Wait()
}

// ResourceManager stores a channel of resources (e.g. evaluators with their
// own buffers) meant to be used concurrently and a channel for errors.
type ResourceManager[T any] struct {
	sync.WaitGroup
	Resources chan T
	Errors    chan error
}

// NewResourceManager instantiates a new ResourceManager.
func NewResourceManager[T any](resources []T) *ResourceManager[T] {
	ch := make(chan T, len(resources))
	for i := range resources {
		ch <- resources[i]
	}
	return &ResourceManager[T]{
		Resources: ch,
		Errors:    make(chan error, len(resources)),
	}
}

// Task is a function taking as input a resource that is
// exclusively owned for the duration of the call.
type Task[T any] func(resource T) (err error)

// Run runs a Task concurrently. If an error has already
// been recorded it does nothing.
func (r *ResourceManager[T]) Run(f Task[T]) {
	r.Add(1)
	go func() {
		defer r.Done()
		if len(r.Errors) != 0 {
			return
		}
		resource := <-r.Resources
		if err := f(resource); err != nil {
			select {
			case r.Errors <- err:
			default:
			}
		}
		r.Resources <- resource
	}()
}

// Wait waits until all Tasks have finished and returns
// the first encountered error, if any.
func (r *ResourceManager[T]) Wait() (err error) {
	r.WaitGroup.Wait()
	select {
	case err = <-r.Errors:
	default:
	}
	return
}
