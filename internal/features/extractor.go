// Package features extracts AI features and use cases from a company's
// website with a language model.
package features

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
	"github.com/sells-group/enrich-cli/pkg/jina"
)

// Output columns added by the features stage.
const (
	ColumnFeatures = "Key AI features"
	ColumnUseCases = "Notable use cases"
)

// Separator joins list items into a single cell.
const Separator = "; "

// Defaults used when no option overrides them.
const (
	DefaultModel           = "claude-haiku-4-5-20251001"
	DefaultMaxTokens       = 1024
	DefaultFetchAttempts   = 3
	DefaultFetchPause      = time.Second
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxContentChars = 60000
)

// Extractor fetches a page through the reader proxy and asks the model
// for structured features.
type Extractor struct {
	reader jina.Client
	llm    anthropic.Client
	window *resilience.Window
	meter  *cost.Meter

	store    store.Store
	cacheTTL time.Duration

	model        string
	maxTokens    int64
	fetchRetry   resilience.Policy
	fetchTimeout time.Duration
	maxChars     int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel sets the model and response token cap.
func WithModel(name string, maxTokens int64) Option {
	return func(e *Extractor) {
		if name != "" {
			e.model = name
		}
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
	}
}

// WithWindow gates model calls through a sliding-window limiter.
func WithWindow(w *resilience.Window) Option {
	return func(e *Extractor) {
		e.window = w
	}
}

// WithMeter records token usage of every model call and page fetch.
func WithMeter(m *cost.Meter) Option {
	return func(e *Extractor) {
		e.meter = m
	}
}

// WithCache stores fetched page content. A nil store disables caching.
func WithCache(st store.Store, ttl time.Duration) Option {
	return func(e *Extractor) {
		e.store = st
		e.cacheTTL = ttl
	}
}

// WithFetch sets the page fetch attempts, pause between attempts and
// per-attempt timeout.
func WithFetch(attempts int, pause, timeout time.Duration) Option {
	return func(e *Extractor) {
		if attempts > 0 {
			e.fetchRetry = resilience.FixedPolicy(attempts, pause)
		}
		if timeout > 0 {
			e.fetchTimeout = timeout
		}
	}
}

// WithMaxContentChars caps the page text sent to the model.
func WithMaxContentChars(n int) Option {
	return func(e *Extractor) {
		e.maxChars = n
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(reader jina.Client, llm anthropic.Client, opts ...Option) *Extractor {
	e := &Extractor{
		reader:       reader,
		llm:          llm,
		model:        DefaultModel,
		maxTokens:    DefaultMaxTokens,
		fetchRetry:   resilience.FixedPolicy(DefaultFetchAttempts, DefaultFetchPause),
		fetchTimeout: DefaultFetchTimeout,
		maxChars:     DefaultMaxContentChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.fetchRetry.OnRetry = resilience.RetryLogger("jina", "read")
	return e
}

// Fetch returns the page text for domain. Every failure is retried with a
// fixed pause; once attempts are exhausted the content is empty.
func (e *Extractor) Fetch(ctx context.Context, domain string) string {
	if content, ok := e.cachedPage(ctx, domain); ok {
		return content
	}

	resp, err := resilience.Retry(ctx, e.fetchRetry, func(ctx context.Context) (*jina.ReadResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
		return e.reader.Read(attemptCtx, domain)
	})
	if err != nil {
		zap.L().Warn("features: page fetch failed, continuing without content",
			zap.String("domain", domain),
			zap.String("kind", resilience.Kind(err)),
			zap.Error(err),
		)
		return ""
	}

	if e.meter != nil {
		e.meter.AddJina(int64(resp.Data.Usage.Tokens))
	}
	content := PageText(resp.Data.Content, e.maxChars)
	e.putPage(ctx, domain, content)
	return content
}

// Analyze asks the model for features in content. A reply without the
// extraction tool call yields an empty Extraction and no error.
func (e *Extractor) Analyze(ctx context.Context, content string) (model.Extraction, error) {
	req := anthropic.MessageRequest{
		Model:      e.model,
		MaxTokens:  e.maxTokens,
		System:     systemPrompt,
		Prompt:     userPromptPrefix + content,
		Tools:      []anthropic.Tool{Tool()},
		ToolChoice: anthropic.ToolChoiceAuto,
	}

	resp, err := resilience.Gate(ctx, e.window, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.llm.CreateMessage(ctx, req)
	})
	if err != nil {
		return model.Extraction{}, eris.Wrap(err, "features: model call")
	}

	if e.meter != nil {
		e.meter.AddModel(cost.Usage{
			Model:        e.model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CacheWrite:   resp.Usage.CacheCreationInputTokens,
			CacheRead:    resp.Usage.CacheReadInputTokens,
		})
	}

	block, ok := resp.ToolUse(ToolName)
	if !ok {
		zap.L().Debug("features: model returned no tool call", zap.String("stop_reason", resp.StopReason))
		return model.Extraction{}, nil
	}
	return ParseExtraction(block.Input)
}

// Extract fetches and analyzes domain. Failures are logged and yield an
// empty Extraction.
func (e *Extractor) Extract(ctx context.Context, domain string) model.Extraction {
	ext, err := e.extract(ctx, domain)
	if err != nil {
		zap.L().Warn("features: extraction failed",
			zap.String("domain", domain),
			zap.String("kind", resilience.Kind(err)),
			zap.Error(err),
		)
	}
	return ext
}

func (e *Extractor) extract(ctx context.Context, domain string) (model.Extraction, error) {
	if domain == "" {
		return model.Extraction{}, eris.Wrap(resilience.ErrNotFound, "features: empty domain")
	}
	return e.Analyze(ctx, e.Fetch(ctx, domain))
}

func (e *Extractor) cachedPage(ctx context.Context, domain string) (string, bool) {
	if e.store == nil {
		return "", false
	}
	data, err := e.store.GetCached(ctx, store.NamespacePage, domain)
	if err != nil {
		zap.L().Warn("features: cache read failed", zap.String("domain", domain), zap.Error(err))
		return "", false
	}
	if data == nil {
		return "", false
	}
	return string(data), true
}

func (e *Extractor) putPage(ctx context.Context, domain, content string) {
	if e.store == nil || content == "" {
		return
	}
	if err := e.store.SetCached(ctx, store.NamespacePage, domain, []byte(content), e.cacheTTL); err != nil {
		zap.L().Warn("features: cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}

// Stage appends the features and use-case columns.
type Stage struct {
	extractor *Extractor
	pacing    time.Duration
}

// NewStage creates the features stage.
func NewStage(extractor *Extractor, pacing time.Duration) *Stage {
	return &Stage{extractor: extractor, pacing: pacing}
}

func (s *Stage) Name() string { return model.StageFeatures }
func (s *Stage) Columns() []string { return []string{ColumnFeatures, ColumnUseCases} }
func (s *Stage) Pacing() time.Duration { return s.pacing }

// Enrich fills both columns from the row's domain. Rows without a domain
// skip the network entirely.
func (s *Stage) Enrich(ctx context.Context, row *model.Row) error {
	ext, err := s.extractor.extract(ctx, strings.TrimSpace(row.Get(model.ColumnDomain)))
	row.Set(ColumnFeatures, strings.Join(ext.KeyAIFeatures, Separator))
	row.Set(ColumnUseCases, strings.Join(ext.NotableUseCases, Separator))
	if err != nil {
		return err
	}
	zap.L().Info("features extracted",
		zap.String("company", row.CompanyName()),
		zap.Int("features", len(ext.KeyAIFeatures)),
		zap.Int("use_cases", len(ext.NotableUseCases)),
	)
	return nil
}
