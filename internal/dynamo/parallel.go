package dynamo

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when a caller passes zero.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	return n
}

// ParallelFor executes fn over [0, n) split into contiguous chunks of at least
// minChunk items, running at most workers chunks at once. It returns after every
// chunk has finished, so writes made by fn are visible to the caller. A panic in
// any chunk is re-raised on the calling goroutine.
func ParallelFor(workers, n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	chunks := workers
	if n/minChunk < chunks {
		chunks = n / minChunk
	}
	if chunks < 1 {
		chunks = 1
	}
	chunkSize := (n + chunks - 1) / chunks

	var (
		g         errgroup.Group
		once      sync.Once
		recovered any
	)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		s, e := start, end
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { recovered = r })
				}
			}()
			fn(s, e)
			return nil
		})
	}
	_ = g.Wait()
	if recovered != nil {
		panic(recovered)
	}
}
