package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

// Glob returns the keys of store matching pattern, in lexical order. "*"
// stays within one path segment and "**" crosses segments.
func Glob(ctx context.Context, store Store, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	lit := pattern
	if i := strings.IndexAny(pattern, "*?[{\\"); i >= 0 {
		lit = pattern[:i]
	}
	prefix := lit[:strings.LastIndex(lit, "/")+1]
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if g.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// FetchAll downloads keys with at most workers requests in flight. The result
// is index-aligned with keys.
func FetchAll(ctx context.Context, store Store, keys []string, workers int) ([][]byte, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([][]byte, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, k := range keys {
		g.Go(func() error {
			data, err := store.Get(ctx, k)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", k, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
