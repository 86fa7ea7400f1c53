package scanner

import (
	"context"
	"sync"

	"github.com/ppiankov/gitweight/internal/github"
)

// ProgressCallback is called as repositories finish scanning.
type ProgressCallback func(done, total int, repository string)

// Runner scans a batch of repositories on a bounded worker pool.
// Results are returned in input order.
type Runner struct {
	walker      *Walker
	concurrency int
	progress    ProgressCallback
}

// NewRunner creates a batch runner. concurrency caps concurrent
// repository scans; keep it small so the shared quota is respected.
func NewRunner(walker *Walker, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Runner{walker: walker, concurrency: concurrency}
}

// SetProgressCallback sets the progress callback function.
func (r *Runner) SetProgressCallback(cb ProgressCallback) {
	r.progress = cb
}

// Run scans every repository in refs. A failed repository yields a
// Result with Error set; it never aborts the batch.
func (r *Runner) Run(ctx context.Context, refs []github.Ref) []Result {
	results := make([]Result, len(refs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, r.concurrency)
	done := 0

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref github.Ref) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := r.walker.Scan(ctx, ref)

			mu.Lock()
			results[i] = res
			done++
			if r.progress != nil {
				r.progress(done, len(refs), ref.String())
			}
			mu.Unlock()
		}(i, ref)
	}

	wg.Wait()
	return results
}
