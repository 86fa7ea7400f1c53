// Package scanner expands repository trees into large-file records.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/gitweight/internal/github"
)

// TreeSource is the slice of the API client the walker needs.
type TreeSource interface {
	ResolveDefaultBranch(ctx context.Context, owner, name string) (string, error)
	FetchTree(ctx context.Context, ref github.Ref) ([]github.TreeNode, bool, error)
	FetchChildren(ctx context.Context, ref github.Ref, path string) ([]github.TreeNode, error)
}

// Walker expands one repository's directory graph into qualifying file
// records. It tries the single-call flat tree first and falls back to
// per-directory expansion when the flat listing is truncated.
type Walker struct {
	source         TreeSource
	thresholdKB    float64
	dirConcurrency int
	maxFiles       int
	now            func() time.Time
}

// NewWalker creates a walker. dirConcurrency caps concurrent sibling
// directory expansions during fallback traversal.
func NewWalker(source TreeSource, thresholdKB float64, dirConcurrency int) *Walker {
	if dirConcurrency <= 0 {
		dirConcurrency = 4
	}
	return &Walker{
		source:         source,
		thresholdKB:    thresholdKB,
		dirConcurrency: dirConcurrency,
		now:            time.Now,
	}
}

// SetMaxFiles caps the number of records reported per repository.
// Zero means unlimited.
func (w *Walker) SetMaxFiles(n int) {
	w.maxFiles = n
}

// Scan traverses one repository from the root. It always starts a fresh
// traversal; a returned Result with a non-empty Error means the
// repository could not be scanned at all.
func (w *Walker) Scan(ctx context.Context, ref github.Ref) Result {
	res := Result{Repository: ref.String(), ScannedAt: w.now()}

	if ref.Revision == "" {
		branch, err := w.source.ResolveDefaultBranch(ctx, ref.Owner, ref.Name)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		ref.Revision = branch
	}
	res.Revision = ref.Revision

	nodes, truncated, err := w.source.FetchTree(ctx, ref)
	switch {
	case err != nil:
		res.Error = err.Error()
		return res
	case truncated:
		slog.Warn("flat tree truncated, falling back to per-directory expansion", "repository", res.Repository)
		w.walkByDirectory(ctx, ref, &res)
	default:
		w.collect(ref, nodes, &res, make(map[string]bool))
	}

	finalize(&res, w.maxFiles)
	return res
}

// walkByDirectory expands the tree one level at a time from the root,
// with an explicit frontier queue instead of recursion. A visited set
// guards against repeated or self-referential paths so traversal always
// terminates and never emits duplicates. A failed subtree is recorded
// and skipped; it never aborts the repository scan.
func (w *Walker) walkByDirectory(ctx context.Context, ref github.Ref, res *Result) {
	visited := map[string]bool{"": true}
	seen := make(map[string]bool)
	frontier := []string{""}

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			// Cancellation: keep what was collected, report the
			// unexpanded remainder as partial failures.
			res.PartialFailures = append(res.PartialFailures, frontier...)
			return
		}

		type expansion struct {
			dir   string
			nodes []github.TreeNode
			err   error
		}
		expansions := make([]expansion, len(frontier))

		var wg sync.WaitGroup
		sem := make(chan struct{}, w.dirConcurrency)
		for i, dir := range frontier {
			wg.Add(1)
			go func(i int, dir string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				nodes, err := w.source.FetchChildren(ctx, ref, dir)
				expansions[i] = expansion{dir: dir, nodes: nodes, err: err}
			}(i, dir)
		}
		wg.Wait()

		var next []string
		for _, ex := range expansions {
			if ex.err != nil {
				slog.Warn("subtree expansion failed", "repository", res.Repository, "path", ex.dir, "error", ex.err)
				res.PartialFailures = append(res.PartialFailures, ex.dir)
				continue
			}
			for _, node := range ex.nodes {
				switch node.Kind {
				case github.Blob:
					w.keep(ref, node, res, seen)
				case github.Tree:
					if !visited[node.Path] {
						visited[node.Path] = true
						next = append(next, node.Path)
					}
				}
			}
		}
		frontier = next
	}
}

func (w *Walker) collect(ref github.Ref, nodes []github.TreeNode, res *Result, seen map[string]bool) {
	for _, node := range nodes {
		if node.Kind == github.Blob {
			w.keep(ref, node, res, seen)
		}
	}
}

func (w *Walker) keep(ref github.Ref, node github.TreeNode, res *Result, seen map[string]bool) {
	if seen[node.Path] {
		return
	}
	seen[node.Path] = true

	size := Classify(node.Size, w.thresholdKB)
	if !size.Qualifies {
		return
	}
	res.Records = append(res.Records, Record{
		Repository: ref.String(),
		Path:       node.Path,
		SizeBytes:  node.Size,
		SizeKB:     size.KB,
		SizeMB:     size.MB,
		Timestamp:  w.now(),
	})
}
