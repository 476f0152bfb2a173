// Package scrape orchestrates plugin searches: the stage walker executes a
// plugin's fetch graph with loop protection, and the engine wraps a full
// search with breaker gating, metrics, dedup, and link validation.
package scrape

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/scavengarr/scavengarr/internal/models"
)

// StageFunc fetches one URL at one depth and returns the stage output:
// extracted results plus outbound links for the next stage. Returning an
// error drops the URL; the walk continues.
type StageFunc func(ctx context.Context, url string, depth int) (*models.StageResult, error)

// Walker executes a stage graph breadth-first. Every URL is visited at most
// once per walk and never beyond MaxDepth. Parallelism bounds the in-flight
// stage fetches in addition to whatever bound the fetcher itself holds.
type Walker struct {
	MaxDepth    int
	Parallelism int
}

// Walk runs the graph from the seed URLs at depth 0 and returns every
// extracted result in stable seed-then-discovery order.
func (w *Walker) Walk(ctx context.Context, seeds []string, stage StageFunc) ([]models.SearchResult, error) {
	maxDepth := w.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	parallelism := w.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}

	visited := make(map[string]struct{})
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s == "" {
			continue
		}
		if _, seen := visited[s]; seen {
			continue
		}
		visited[s] = struct{}{}
		frontier = append(frontier, s)
	}

	var results []models.SearchResult
	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallelism)

		var mu sync.Mutex
		outputs := make([]*models.StageResult, len(frontier))

		for i, u := range frontier {
			g.Go(func() error {
				out, err := stage(gctx, u, depth)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					return nil
				}
				mu.Lock()
				outputs[i] = out
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, out := range outputs {
			if out == nil {
				continue
			}
			results = append(results, out.Results...)
			for _, next := range out.NextLinks {
				if next == "" {
					continue
				}
				if _, seen := visited[next]; seen {
					continue
				}
				visited[next] = struct{}{}
				frontier = append(frontier, next)
			}
		}
	}
	return results, nil
}
