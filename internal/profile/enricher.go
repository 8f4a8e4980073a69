// Package profile enriches rows with firmographics from the company-data
// API, falling back to a static table.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/pkg/bigpicture"
)

// Retry defaults for lookups the API is still processing (202).
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// Enricher looks up company profiles by domain.
type Enricher struct {
	client     bigpicture.Client
	fallback   *Table
	store      store.Store
	cacheTTL   time.Duration
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithFallback replaces the built-in fallback table.
func WithFallback(t *Table) Option {
	return func(e *Enricher) {
		e.fallback = t
	}
}

// WithCache stores successful API replies. A nil store disables caching.
func WithCache(st store.Store, ttl time.Duration) Option {
	return func(e *Enricher) {
		e.store = st
		e.cacheTTL = ttl
	}
}

// WithRetry sets how often and how far apart a pending lookup is retried.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(e *Enricher) {
		if maxRetries >= 0 {
			e.maxRetries = maxRetries
		}
		if delay >= 0 {
			e.retryDelay = delay
		}
	}
}

// WithSleeper overrides how the enricher waits between retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Enricher) {
		e.sleep = sleep
	}
}

// NewEnricher creates an Enricher over the company-data client.
func NewEnricher(client bigpicture.Client, opts ...Option) *Enricher {
	e := &Enricher{
		client:     client,
		fallback:   DefaultTable(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      resilience.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetch returns the profile for domain. A 202 reply is retried up to the
// configured count; a 404 consults the fallback table. When nothing is
// found the error wraps resilience.ErrNotFound.
func (e *Enricher) Fetch(ctx context.Context, domain string) (model.Profile, error) {
	if domain == "" {
		return nil, eris.Wrap(resilience.ErrNotFound, "profile: empty domain")
	}
	if p := e.cached(ctx, domain); p != nil {
		return p, nil
	}

	for attempt := 0; ; attempt++ {
		resp, err := e.client.Find(ctx, domain)
		if err != nil {
			return nil, eris.Wrapf(err, "profile: lookup %s", domain)
		}

		switch {
		case resp.Pending():
			if attempt >= e.maxRetries {
				return nil, eris.Wrapf(resilience.ErrNotFound, "profile: %s still pending after %d retries", domain, e.maxRetries)
			}
			zap.L().Info("profile: lookup pending, retrying",
				zap.String("domain", domain),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", e.retryDelay),
			)
			if err := e.sleep(ctx, e.retryDelay); err != nil {
				return nil, eris.Wrap(err, "profile: wait for pending lookup")
			}

		case resp.NotFound():
			if p, ok := e.fallback.Lookup(domain); ok {
				zap.L().Info("profile: using fallback table", zap.String("domain", domain))
				return p, nil
			}
			return nil, eris.Wrapf(resilience.ErrNotFound, "profile: no data for %s", domain)

		default:
			p, err := decodeProfile(resp.Body)
			if err != nil {
				return nil, eris.Wrapf(err, "profile: decode %s", domain)
			}
			e.put(ctx, domain, resp.Body)
			return p, nil
		}
	}
}

// Lookup resolves a homepage to a profile. Failures are logged and
// reported as not found.
func (e *Enricher) Lookup(ctx context.Context, homepage, name string) (model.Profile, bool) {
	p, err := e.Fetch(ctx, ExtractDomain(homepage))
	if err != nil {
		zap.L().Warn("profile: lookup failed",
			zap.String("company", name),
			zap.String("homepage", homepage),
			zap.String("kind", resilience.Kind(err)),
			zap.Error(err),
		)
		return nil, false
	}
	return p, true
}

func (e *Enricher) cached(ctx context.Context, domain string) model.Profile {
	if e.store == nil {
		return nil
	}
	data, err := e.store.GetCached(ctx, store.NamespaceProfile, domain)
	if err != nil {
		zap.L().Warn("profile: cache read failed", zap.String("domain", domain), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	p, err := decodeProfile(data)
	if err != nil {
		zap.L().Warn("profile: discarding malformed cache entry", zap.String("domain", domain))
		return nil
	}
	return p
}

func (e *Enricher) put(ctx context.Context, domain string, body []byte) {
	if e.store == nil {
		return
	}
	if err := e.store.SetCached(ctx, store.NamespaceProfile, domain, body, e.cacheTTL); err != nil {
		zap.L().Warn("profile: cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}

// decodeProfile parses a JSON object, keeping numbers textual so years
// and counts render without a decimal point.
func decodeProfile(body []byte) (model.Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p map[string]any
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrapf(resilience.ErrMalformed, "profile: %v", err)
	}
	if p == nil {
		return nil, eris.Wrap(resilience.ErrMalformed, "profile: body is not an object")
	}
	return model.Profile(p), nil
}

// Stage appends the profile attribute columns.
type Stage struct {
	enricher *Enricher
	pacing   time.Duration
}

// NewStage creates the profiles stage.
func NewStage(enricher *Enricher, pacing time.Duration) *Stage {
	return &Stage{enricher: enricher, pacing: pacing}
}

func (s *Stage) Name() string { return model.StageProfiles }
func (s *Stage) Columns() []string { return append([]string(nil), Attributes...) }
func (s *Stage) Pacing() time.Duration { return s.pacing }

// Enrich fills the attribute columns from the row's Homepage. Rows without
// a usable domain or profile are left blank and the reason is returned.
func (s *Stage) Enrich(ctx context.Context, row *model.Row) error {
	homepage := row.Get(model.ColumnHomepage)
	domain := ExtractDomain(homepage)
	if domain == "" {
		return eris.Wrapf(resilience.ErrNotFound, "profile: no domain in homepage %q", homepage)
	}

	p, err := s.enricher.Fetch(ctx, domain)
	if err != nil {
		return err
	}
	for _, f := range Flatten(p) {
		row.Set(f.Name, f.Value)
	}
	zap.L().Info("profile enriched", zap.String("company", row.CompanyName()), zap.String("domain", domain))
	return nil
}
