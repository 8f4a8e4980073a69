package homepage

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Column is the output column added by the homepages stage.
const Column = model.ColumnHomepage

// Defaults used when no option overrides them.
const (
	DefaultQueryTemplate = "%s AI company official website"
	DefaultNumResults    = 10
)

// Resolver maps a company name to exactly one homepage URL or NotAvailable.
type Resolver struct {
	searcher      Searcher
	overrides     *Overrides
	heuristic     *Heuristic
	queryTemplate string
	numResults    int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverrides replaces the built-in override table.
func WithOverrides(o *Overrides) Option {
	return func(r *Resolver) {
		r.overrides = o
	}
}

// WithHeuristic replaces the default selection heuristic.
func WithHeuristic(h *Heuristic) Option {
	return func(r *Resolver) {
		r.heuristic = h
	}
}

// WithQueryTemplate sets the search query; %s is replaced by the name.
func WithQueryTemplate(tmpl string) Option {
	return func(r *Resolver) {
		if tmpl != "" {
			r.queryTemplate = tmpl
		}
	}
}

// WithNumResults sets how many results are requested per query.
func WithNumResults(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.numResults = n
		}
	}
}

// NewResolver creates a Resolver backed by searcher.
func NewResolver(searcher Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		searcher:      searcher,
		overrides:     DefaultOverrides(),
		heuristic:     NewHeuristic(nil),
		queryTemplate: DefaultQueryTemplate,
		numResults:    DefaultNumResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the homepage for name. The URL is always usable: a
// failed search yields NotAvailable together with the error.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return NotAvailable, nil
	}
	if u, ok := r.overrides.Lookup(name); ok {
		zap.L().Debug("homepage: using override", zap.String("company", name), zap.String("url", u))
		return u, nil
	}

	results, err := r.searcher.Search(ctx, fmt.Sprintf(r.queryTemplate, name), r.numResults)
	if err != nil {
		return NotAvailable, eris.Wrapf(err, "homepage: search %q", name)
	}
	if u := r.heuristic.Select(results, name); u != "" {
		return u, nil
	}
	return NotAvailable, nil
}

// Stage appends the Homepage column.
type Stage struct {
	resolver *Resolver
	pacing   time.Duration
}

// NewStage creates the homepages stage.
func NewStage(resolver *Resolver, pacing time.Duration) *Stage {
	return &Stage{resolver: resolver, pacing: pacing}
}

func (s *Stage) Name() string { return model.StageHomepages }
func (s *Stage) Columns() []string { return []string{Column} }
func (s *Stage) Pacing() time.Duration { return s.pacing }

// Enrich sets Homepage on row. On a search failure the cell is N/A and the
// error is returned for logging.
func (s *Stage) Enrich(ctx context.Context, row *model.Row) error {
	u, err := s.resolver.Resolve(ctx, row.CompanyName())
	row.Set(Column, u)
	if err != nil {
		return err
	}
	zap.L().Info("homepage resolved", zap.String("company", row.CompanyName()), zap.String("homepage", u))
	return nil
}
