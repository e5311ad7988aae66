package recovery

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mfkey/internal/storage"
	"mfkey/pkg"
)

// DefaultMSBLimit is the bucket width: 16 contribution byte values per bucket,
// 16 buckets in total.
const DefaultMSBLimit = 16

// pollEvery is how many seeds are expanded between cancellation checks.
const pollEvery = 1 << 15

// Result of a search. Key is only meaningful when Found is set.
type Result struct {
	Key    uint64
	Found  bool
	Bucket int
	// Tested counts full states that reached validation.
	Tested int
}

type Config struct {
	MSBLimit int
	// Workers bounds how many buckets run at once; 0 means GOMAXPROCS.
	Workers int
}

// Partitioner splits the key search into independent buckets keyed on the
// contribution byte, so only one bucket's tables are alive per worker.
type Partitioner struct {
	msbLimit int
	workers  int
	stores   *storage.Factory
	metrics  *pkg.Metrics
}

func NewPartitioner(cfg Config, stores *storage.Factory, metrics *pkg.Metrics) (*Partitioner, error) {
	if cfg.MSBLimit <= 0 || cfg.MSBLimit > 256 || 256%cfg.MSBLimit != 0 {
		return nil, fmt.Errorf("msb limit %d does not divide 256", cfg.MSBLimit)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Partitioner{
		msbLimit: cfg.MSBLimit,
		workers:  workers,
		stores:   stores,
		metrics:  metrics,
	}, nil
}

// Workers is how many buckets may be searched at once.
func (p *Partitioner) Workers() int {
	return p.workers
}

// Buckets is the number of buckets one search is split into.
func (p *Partitioner) Buckets() int {
	return 256 / p.msbLimit
}

// Recover searches every bucket for the key behind params. The first bucket
// that validates a key wins and the others are cancelled.
func (p *Partitioner) Recover(ctx context.Context, params *Params) (Result, error) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(searchCtx)
	g.SetLimit(p.workers)

	var (
		mu     sync.Mutex
		res    Result
		tested int
	)
	for b := 0; b < p.Buckets(); b++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := p.RecoverBucket(gctx, params, b)

			mu.Lock()
			defer mu.Unlock()
			tested += r.Tested
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
			if r.Found && !res.Found {
				res = r
				cancel()
			}
			return nil
		})
	}
	err := g.Wait()

	res.Tested = tested
	if res.Found {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// RecoverBucket runs the search restricted to one bucket.
func (p *Partitioner) RecoverBucket(ctx context.Context, params *Params, bucket int) (res Result, err error) {
	if bucket < 0 || bucket >= p.Buckets() {
		return Result{}, fmt.Errorf("bucket %d out of range [0, %d)", bucket, p.Buckets())
	}
	res.Bucket = bucket
	start := time.Now()
	logger := loggerFrom(ctx).With(zap.Int("bucket", bucket))

	odd, err := p.stores.New()
	if err != nil {
		return res, fmt.Errorf("odd table: %w", err)
	}
	defer closeStore(odd, &err)
	even, err := p.stores.New()
	if err != nil {
		return res, fmt.Errorf("even table: %w", err)
	}
	defer closeStore(even, &err)

	lo := uint32(bucket * p.msbLimit)
	hi := lo + uint32(p.msbLimit)
	oks, eks := splitKeystream(params.Keystream())

	scratch := storage.NewMemStore(64)
	if err := buildBucket(ctx, odd, scratch, oks, oddMasks, lo, hi); err != nil {
		return res, fmt.Errorf("odd table: %w", err)
	}
	if err := buildBucket(ctx, even, scratch, eks, evenMasks, lo, hi); err != nil {
		return res, fmt.Errorf("even table: %w", err)
	}
	logger.Debug("bucket tables built",
		zap.Int("odd", odd.Len()),
		zap.Int("even", even.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if odd.Len() > 0 && even.Len() > 0 {
		w := &walker{ctx: ctx, odd: odd, even: even, params: params}
		out := w.recover(
			span{0, odd.Len() - 1},
			span{0, even.Len() - 1},
			oks>>seedRounds,
			eks>>seedRounds,
			finalDepth,
			false,
		)
		res.Tested = w.tested
		if !out.found {
			if err := firstErr(odd.Err(), even.Err()); err != nil {
				return res, fmt.Errorf("search tables: %w", err)
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		res.Key, res.Found = out.key, out.found
	}

	if p.metrics != nil {
		p.metrics.Buckets.Inc()
		p.metrics.StatesTested.Add(float64(res.Tested))
	}
	logger.Debug("bucket searched",
		zap.Bool("found", res.Found),
		zap.Int("tested", res.Tested),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// buildBucket expands every seed seedRounds bits in scratch and keeps the
// entries whose contribution byte falls in [lo, hi). The result is sorted and
// free of duplicates.
func buildBucket(ctx context.Context, dst storage.Store, scratch *storage.MemStore, ks uint32, m masks, lo, hi uint32) error {
	n := 0
	for seed := range seeds(ks & 1) {
		if n++; n%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		scratch.Reset()
		scratch.Append(seed)
		tail := 0
		for round := 1; round <= seedRounds && tail >= 0; round++ {
			tail = extend(scratch, 0, tail, ks>>round&1, m, round > plainRounds)
		}
		for i := 0; i <= tail; i++ {
			v := scratch.Get(i)
			if msb := v >> 24; msb >= lo && msb < hi {
				dst.Append(v)
			}
		}
		if err := dst.Err(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	storage.Sort(dst, 0, dst.Len()-1)
	storage.Compact(dst)
	return dst.Err()
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if l := pkg.LoggerFromCtx(ctx); l != nil {
		return l
	}
	return zap.NewNop()
}

func closeStore(s storage.Store, err *error) {
	if cerr := s.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close table: %w", cerr)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
