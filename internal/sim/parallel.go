package sim

import (
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest index range handed to a worker.
const minChunk = 64

// workerPool runs fork-join loops over [0, n). Each call returns only after
// every chunk has finished.
type workerPool struct {
	workers int
}

func newWorkerPool(workers int) workerPool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return workerPool{workers: workers}
}

// split returns the number of chunks and the chunk length for n items.
func (p workerPool) split(n int) (int, int) {
	workers := p.workers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}
	size := (n + workers - 1) / workers
	// Rounding size up can leave trailing workers with nothing to do.
	return (n + size - 1) / size, size
}

// For calls fn on disjoint chunks of [0, n) in parallel.
func (p workerPool) For(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers, size := p.split(n)
	if workers == 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * size
		end := min(start+size, n)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForErr is For with error propagation. The first error returned by any
// chunk is reported; the remaining chunks still run to completion.
func (p workerPool) ForErr(n int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	workers, size := p.split(n)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * size
		end := min(start+size, n)
		g.Go(func() error { return fn(start, end) })
	}
	return g.Wait()
}

// Reduce evaluates fn on each chunk in parallel and folds the partial
// results with combine, starting from identity.
func (p workerPool) Reduce(n int, identity float64, fn func(start, end int) float64, combine func(a, b float64) float64) float64 {
	if n <= 0 {
		return identity
	}
	workers, size := p.split(n)
	partial := make([]float64, workers)
	for i := range partial {
		partial[i] = identity
	}

	p.For(n, func(start, end int) {
		partial[start/size] = fn(start, end)
	})

	acc := identity
	for _, v := range partial {
		acc = combine(acc, v)
	}
	return acc
}

func (p workerPool) Sum(n int, fn func(start, end int) float64) float64 {
	return p.Reduce(n, 0, fn, func(a, b float64) float64 { return a + b })
}

func (p workerPool) Max(n int, fn func(start, end int) float64) float64 {
	return p.Reduce(n, math.Inf(-1), fn, math.Max)
}
