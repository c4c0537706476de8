package resolver

//go:generate mockgen -destination=mock_upstream_test.go -package=resolver . Upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"staticcurator/models"
)

var errEmptyID = errors.New("upstream returned an empty id")

// Upstream resolves a single TMDB movie id to its IMDb id.
type Upstream interface {
	ResolveExternalID(ctx context.Context, tmdbID int64) (string, error)
}

// Sleeper pauses between chunks. It returns early with ctx.Err() when the
// context is cancelled.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy controls how lookups are paced against the upstream rate limit.
type Policy struct {
	ChunkSize int
	Delay     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{ChunkSize: 20, Delay: 5 * time.Second}
}

// ZeroDelay keeps chunking but never pauses.
func ZeroDelay(chunkSize int) Policy {
	return Policy{ChunkSize: chunkSize}
}

// Result is the outcome of one item's lookup. Exactly one of ExternalID or
// Err is set.
type Result struct {
	UpstreamID int64
	ExternalID string
	Err        error
	Cached     bool
}

func (r Result) OK() bool { return r.Err == nil && r.ExternalID != "" }

// Resolution is everything a Resolve call produced.
type Resolution struct {
	// IDs holds successful lookups only; failed items have no entry.
	IDs map[int64]string
	// Results has one entry per input item, in input order.
	Results []Result
	// Pauses counts the inter-chunk delays that were taken.
	Pauses int
}

// Failed returns the results whose lookup did not produce an id.
func (r Resolution) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Resolver looks up IMDb ids for discovered movies in paced, concurrent chunks.
type Resolver struct {
	upstream Upstream
	policy   Policy
	sleep    Sleeper
	cache    *IDCache
	log      *slog.Logger
}

type Option func(*Resolver)

func WithSleeper(s Sleeper) Option {
	return func(r *Resolver) { r.sleep = s }
}

// WithCache enables the persistent id mapping cache.
func WithCache(c *IDCache) Option {
	return func(r *Resolver) { r.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func New(upstream Upstream, policy Policy, opts ...Option) *Resolver {
	if policy.ChunkSize < 1 {
		policy.ChunkSize = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	r := &Resolver{
		upstream: upstream,
		policy:   policy,
		sleep:    sleepContext,
		log:      slog.Default().With("component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Policy() Policy { return r.policy }

// Resolve looks up every item. Items inside a chunk are resolved concurrently;
// chunks run one after another with the policy delay between them. A failed
// lookup only affects its own item. The returned error is non-nil only when
// ctx was cancelled, in which case the partial resolution is still returned.
func (r *Resolver) Resolve(ctx context.Context, items []models.RawItem) (Resolution, error) {
	res := Resolution{
		IDs:     make(map[int64]string, len(items)),
		Results: make([]Result, 0, len(items)),
	}
	if len(items) == 0 {
		return res, nil
	}

	size := r.policy.ChunkSize
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := items[start:end]

		results := r.resolveChunk(ctx, chunk)
		for _, result := range results {
			res.Results = append(res.Results, result)
			if result.OK() {
				res.IDs[result.UpstreamID] = result.ExternalID
			}
		}

		r.log.Debug("chunk resolved",
			"chunk", start/size+1,
			"size", len(chunk),
			"resolved", countOK(results))

		if end < len(items) {
			if err := r.sleep(ctx, r.policy.Delay); err != nil {
				return res, err
			}
			res.Pauses++
		}
	}
	return res, nil
}

func (r *Resolver) resolveChunk(ctx context.Context, chunk []models.RawItem) []Result {
	results := make([]Result, len(chunk))
	p := pool.New().WithMaxGoroutines(len(chunk))
	for i, item := range chunk {
		p.Go(func() {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = Result{UpstreamID: item.UpstreamID, Err: fmt.Errorf("lookup panicked: %v", rec)}
				}
			}()
			results[i] = r.resolveOne(ctx, item.UpstreamID)
		})
	}
	p.Wait()
	return results
}

func (r *Resolver) resolveOne(ctx context.Context, tmdbID int64) Result {
	if r.cache != nil {
		if id, ok := r.cache.Get(tmdbID); ok {
			return Result{UpstreamID: tmdbID, ExternalID: id, Cached: true}
		}
	}
	id, err := r.upstream.ResolveExternalID(ctx, tmdbID)
	if err != nil {
		r.log.Debug("lookup failed", "tmdb_id", tmdbID, "error", err)
		return Result{UpstreamID: tmdbID, Err: err}
	}
	if id == "" {
		return Result{UpstreamID: tmdbID, Err: errEmptyID}
	}
	if r.cache != nil {
		if err := r.cache.Set(tmdbID, id); err != nil {
			r.log.Warn("failed to cache id mapping", "tmdb_id", tmdbID, "error", err)
		}
	}
	return Result{UpstreamID: tmdbID, ExternalID: id}
}

func countOK(results []Result) int {
	n := 0
	for _, res := range results {
		if res.OK() {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
