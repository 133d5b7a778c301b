package oracle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/lstar/internal/word"
)

// DefaultChunkSize is the number of queries each Parallel worker receives.
const DefaultChunkSize = 64

// Parallel splits a batch into chunks and answers them concurrently.
//
// Answers are written into indexed slots of one result slice and returned
// only after every chunk finished, so callers observe a complete batch or an
// error, never a partial answer set. The first chunk error cancels the
// remaining chunks.
//
// The delegate must be safe for concurrent use.
type Parallel[I comparable, O any] struct {
	delegate  MembershipOracle[I, O]
	workers   int
	chunkSize int
}

// ParallelOption configures a Parallel oracle.
type ParallelOption func(*parallelConfig)

type parallelConfig struct {
	workers   int
	chunkSize int
}

// WithWorkers caps the number of concurrently answered chunks.
// Values below 1 mean unlimited.
func WithWorkers(n int) ParallelOption {
	return func(c *parallelConfig) {
		c.workers = n
	}
}

// WithChunkSize sets the number of queries per chunk (default DefaultChunkSize).
func WithChunkSize(n int) ParallelOption {
	return func(c *parallelConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewParallel wraps delegate.
func NewParallel[I comparable, O any](delegate MembershipOracle[I, O], opts ...ParallelOption) *Parallel[I, O] {
	cfg := parallelConfig{workers: 4, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Parallel[I, O]{
		delegate:  delegate,
		workers:   cfg.workers,
		chunkSize: cfg.chunkSize,
	}
}

// Answer fans the batch out and gathers the answers in query order.
func (p *Parallel[I, O]) Answer(ctx context.Context, queries []word.Word[I]) ([]O, error) {
	if len(queries) <= p.chunkSize {
		return p.delegate.Answer(ctx, queries)
	}

	results := make([]O, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	if p.workers > 0 {
		g.SetLimit(p.workers)
	}

	for start := 0; start < len(queries); start += p.chunkSize {
		end := min(start+p.chunkSize, len(queries))
		chunk := queries[start:end]

		g.Go(func() error {
			answers, err := p.delegate.Answer(gCtx, chunk)
			if err != nil {
				return fmt.Errorf("chunk [%d,%d): %w", start, start+len(chunk), err)
			}
			if err := CheckAnswers(len(chunk), answers); err != nil {
				return err
			}
			// Disjoint slots per goroutine, no lock needed.
			copy(results[start:], answers)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
