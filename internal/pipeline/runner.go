// Package pipeline runs a stage over every row of an input table.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/csvio"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Stage enriches one row at a time.
type Stage interface {
	// Name identifies the stage in logs and run history.
	Name() string
	// Columns are appended to the input header.
	Columns() []string
	// Enrich sets the stage columns on row. It may set cells before
	// returning an error; any column it leaves unset is written blank.
	Enrich(ctx context.Context, row *model.Row) error
	// Pacing is the pause after every processed row.
	Pacing() time.Duration
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID       string
	Stage       string
	Input       string
	Output      string
	Rows        int
	Written     int
	Skipped     int
	Failed      int
	Interrupted bool
	Usage       cost.Snapshot
	Duration    time.Duration
}

// Stats converts the summary to the stored run statistics.
func (s *Summary) Stats() model.RunStats {
	return model.RunStats{
		Rows:        s.Rows,
		Written:     s.Written,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		TotalTokens: s.Usage.TotalTokens,
		TotalCost:   s.Usage.Cost,
		DurationMs:  s.Duration.Milliseconds(),
	}
}

// Runner drives the per-row loop shared by every stage.
type Runner struct {
	store store.Store
	meter *cost.Meter
	limit int
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore records each run in st. A nil store disables recording.
func WithStore(st store.Store) Option {
	return func(r *Runner) {
		r.store = st
	}
}

// WithMeter includes the meter's totals in the summary.
func WithMeter(m *cost.Meter) Option {
	return func(r *Runner) {
		r.meter = m
	}
}

// WithLimit stops after n enriched rows. Zero means no limit.
func WithLimit(n int) Option {
	return func(r *Runner) {
		r.limit = n
	}
}

// WithSleeper overrides the pacing sleep (for testing).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		sleep: resilience.Sleep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run enriches every row of in and writes the result to out. Rows are
// processed in file order and flushed one by one, so an interrupted run
// leaves every completed row on disk. Row failures are logged and the
// row is written with blank stage columns; only file errors abort.
func (r *Runner) Run(ctx context.Context, stage Stage, in, out string) (*Summary, error) {
	start := r.now()
	sum := &Summary{Stage: stage.Name(), Input: in, Output: out}
	log := zap.L().With(zap.String("stage", stage.Name()))

	src, err := csvio.Open(in)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open input for %s", stage.Name())
	}
	defer src.Close() //nolint:errcheck

	columns := stage.Columns()
	w, err := csvio.Create(out, csvio.MergeHeader(src.Header(), columns))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output for %s", stage.Name())
	}

	r.startRun(ctx, sum, log)
	log.Info("pipeline: stage started", zap.String("input", in), zap.String("output", out), zap.String("run_id", sum.RunID))

	runErr := r.loop(ctx, stage, src, w, columns, sum, log)
	if closeErr := w.Close(); closeErr != nil && runErr == nil {
		runErr = eris.Wrap(closeErr, "pipeline: close output")
	}

	sum.Duration = r.now().Sub(start)
	if r.meter != nil {
		sum.Usage = r.meter.Snapshot()
	}
	r.finishRun(ctx, sum, runErr, log)

	if runErr != nil {
		return sum, runErr
	}
	log.Info("pipeline: stage finished",
		zap.Int("rows", sum.Rows),
		zap.Int("written", sum.Written),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Bool("interrupted", sum.Interrupted),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (r *Runner) loop(ctx context.Context, stage Stage, src csvio.Source, w *csvio.Writer, columns []string, sum *Summary, log *zap.Logger) error {
	processed := 0
	for {
		if ctx.Err() != nil {
			sum.Interrupted = true
			return nil
		}
		if r.limit > 0 && processed >= r.limit {
			log.Info("pipeline: row limit reached", zap.Int("limit", r.limit))
			return nil
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "pipeline: read input")
		}
		sum.Rows++

		if row.IsSentinel() {
			sum.Skipped++
			log.Debug("pipeline: skipping sentinel row", zap.String("company", row.CompanyName()))
			continue
		}
		processed++

		for _, col := range columns {
			row.Set(col, "")
		}
		if err := stage.Enrich(ctx, row); err != nil {
			if ctx.Err() != nil {
				sum.Interrupted = true
				return nil
			}
			sum.Failed++
			log.Warn("pipeline: row enrichment failed",
				zap.String("company", row.CompanyName()),
				zap.String("kind", resilience.Kind(err)),
				zap.Error(err),
			)
		}

		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "pipeline: write output")
		}
		sum.Written++

		if err := r.sleep(ctx, stage.Pacing()); err != nil {
			sum.Interrupted = true
			return nil
		}
	}
}

func (r *Runner) startRun(ctx context.Context, sum *Summary, log *zap.Logger) {
	if r.store == nil {
		return
	}
	run, err := r.store.CreateRun(ctx, sum.Stage, sum.Input, sum.Output)
	if err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
		return
	}
	sum.RunID = run.ID
}

func (r *Runner) finishRun(ctx context.Context, sum *Summary, runErr error, log *zap.Logger) {
	if r.store == nil || sum.RunID == "" {
		return
	}
	status := model.RunStatusComplete
	msg := ""
	switch {
	case runErr != nil:
		status = model.RunStatusFailed
		msg = runErr.Error()
	case sum.Interrupted:
		status = model.RunStatusFailed
		msg = "interrupted"
	}
	// The run may have been canceled; the record still has to be closed.
	if err := r.store.FinishRun(context.WithoutCancel(ctx), sum.RunID, status, sum.Stats(), msg); err != nil {
		log.Warn("pipeline: failed to finish run", zap.String("run_id", sum.RunID), zap.Error(err))
	}
}
