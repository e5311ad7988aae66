package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"mfkey/internal/recovery"
	"mfkey/pkg"
)

// maxLineLen bounds one capture log line; real captures are under 200 bytes.
const maxLineLen = 4096

const progressTemplate = `{{counters . }} {{bar . }} {{percent . }} {{etime . }} {{string . "keys"}}`

// Recoverer searches for the key behind one session.
type Recoverer interface {
	Recover(ctx context.Context, params *recovery.Params) (recovery.Result, error)
}

type Options struct {
	// SessionTimeout bounds one session's search; zero means no limit.
	SessionTimeout time.Duration
	Progress       bool
	ProgressOutput io.Writer
}

// Outcome of one session. Known marks a session already explained by a key
// found earlier in the run.
type Outcome struct {
	Key   uint64
	Found bool
	Known bool
	Added bool
}

type Driver struct {
	recoverer Recoverer
	registry  *Registry
	metrics   *pkg.Metrics
	logger    *zap.Logger
	opts      Options
}

func NewDriver(recoverer Recoverer, registry *Registry, metrics *pkg.Metrics, logger *zap.Logger, opts Options) *Driver {
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	return &Driver{
		recoverer: recoverer,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

func (d *Driver) Registry() *Registry {
	return d.registry
}

// RunSession recovers the key of one session unless a known key already
// explains it. A session without a key is not an error.
func (d *Driver) RunSession(ctx context.Context, s Session) (Outcome, error) {
	logger := d.logger.With(
		zap.Int("line", s.Line),
		zap.String("sector", s.Sector),
		zap.String("key_type", s.KeyType),
		zap.String("uid", fmt.Sprintf("%08X", s.Params.UID)),
	)

	if key, ok := d.registry.Lookup(&s.Params); ok {
		logger.Info("session explained by a known key", zap.String("key", formatKey(key)))
		d.countSession("known")
		return Outcome{Key: key, Found: true, Known: true}, nil
	}

	if d.opts.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.SessionTimeout)
		defer cancel()
	}
	ctx = pkg.LoggerWithCtx(ctx, logger)

	start := time.Now()
	res, err := d.recoverer.Recover(ctx, &s.Params)
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.SessionDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		d.countSession("failed")
		return Outcome{}, fmt.Errorf("line %d: %w", s.Line, err)
	}
	if !res.Found {
		logger.Info("no key found", zap.Int("tested", res.Tested), zap.Duration("elapsed", elapsed))
		d.countSession("not_found")
		return Outcome{}, nil
	}

	added := d.registry.Insert(&s.Params, res.Key)
	if added && d.metrics != nil {
		d.metrics.KeysFound.Inc()
	}
	logger.Info("key found",
		zap.String("key", formatKey(res.Key)),
		zap.Int("bucket", res.Bucket),
		zap.Int("tested", res.Tested),
		zap.Duration("elapsed", elapsed),
	)
	d.countSession("found")
	return Outcome{Key: res.Key, Found: true, Added: added}, nil
}

// RunBatch runs every capture line of r. Malformed lines and failed sessions
// are logged and skipped; only a read error or cancellation of ctx stops the
// batch early. The registry is returned in every case.
func (d *Driver) RunBatch(ctx context.Context, r io.Reader) (*Registry, error) {
	sessions, err := d.readSessions(r)
	if err != nil {
		return d.registry, err
	}
	d.logger.Info("loaded sessions", zap.Int("sessions", len(sessions)))

	var bar *pb.ProgressBar
	if d.opts.Progress {
		bar = pb.New(len(sessions)).
			SetWriter(d.opts.ProgressOutput).
			SetTemplateString(progressTemplate).
			Start()
		defer bar.Finish()
	}

	failed := 0
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return d.registry, err
		}
		if _, err := d.RunSession(ctx, s); err != nil {
			if ctx.Err() != nil {
				return d.registry, ctx.Err()
			}
			failed++
			d.logger.Error("session failed", zap.Error(err))
		}
		if bar != nil {
			bar.Set("keys", fmt.Sprintf("keys: %d", d.registry.Len()))
			bar.Increment()
		}
	}

	d.logger.Info("batch complete",
		zap.Int("sessions", len(sessions)),
		zap.Int("failed", failed),
		zap.Int("keys", d.registry.Len()),
	)
	return d.registry, nil
}

func (d *Driver) readSessions(r io.Reader) ([]Session, error) {
	var sessions []Session
	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, tooLong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read capture log: %w", err)
		}

		switch {
		case tooLong:
			d.skipLine(&ParseError{Line: n, Err: ErrLineTooLong})
		case line != "":
			s, perr := ParseLine(n, line)
			switch {
			case errors.Is(perr, ErrNotCapture):
			case perr != nil:
				d.skipLine(perr)
			default:
				sessions = append(sessions, s)
			}
		}

		if err != nil {
			return sessions, nil
		}
	}
}

// readLine returns the next line without its newline. Lines longer than
// maxLineLen are consumed but not kept, and tooLong is set.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		frag, rerr := br.ReadSlice('\n')
		if !tooLong && len(buf)+len(frag) <= maxLineLen+1 {
			buf = append(buf, frag...)
		} else {
			tooLong = true
		}
		if !errors.Is(rerr, bufio.ErrBufferFull) {
			return strings.TrimRight(string(buf), "\r\n"), tooLong, rerr
		}
	}
}

func (d *Driver) skipLine(err error) {
	if d.metrics != nil {
		d.metrics.ParseErrors.Inc()
	}
	d.logger.Warn("skipping malformed line", zap.Error(err))
}

func (d *Driver) countSession(result string) {
	if d.metrics != nil {
		d.metrics.Sessions.WithLabelValues(result).Inc()
	}
}
