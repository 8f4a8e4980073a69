package homepage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/pkg/jina"
	"github.com/sells-group/enrich-cli/pkg/serper"
)

// Searcher returns ranked organic results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]model.SearchResult, error)
}

// SerperSearcher adapts the Serper client.
type SerperSearcher struct {
	client serper.Client
}

// NewSerperSearcher wraps a Serper client.
func NewSerperSearcher(client serper.Client) *SerperSearcher {
	return &SerperSearcher{client: client}
}

// Search runs query through Serper.
func (s *SerperSearcher) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query, num)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		out = append(out, model.SearchResult{Link: r.Link, Title: r.Title, Snippet: r.Snippet})
	}
	return out, nil
}

// JinaSearcher adapts Jina Search.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

// Search runs query through Jina Search. The description is used as the
// snippet, falling back to page content.
func (s *JinaSearcher) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query, jina.WithNum(num))
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{Link: r.URL, Title: r.Title, Snippet: snippet})
	}
	return out, nil
}

// CachedSearcher stores successful results in the API cache. Cache
// failures are logged and never fail a search.
type CachedSearcher struct {
	next  Searcher
	store store.Store
	ttl   time.Duration
}

// NewCachedSearcher decorates next with a cache. A nil store disables
// caching and returns next unchanged.
func NewCachedSearcher(next Searcher, st store.Store, ttl time.Duration) Searcher {
	if st == nil {
		return next
	}
	return &CachedSearcher{next: next, store: st, ttl: ttl}
}

// Search returns cached results for (query, num) or delegates.
func (c *CachedSearcher) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	key := query + "|" + strconv.Itoa(num)
	log := zap.L().With(zap.String("namespace", store.NamespaceSearch), zap.String("key", key))

	data, err := c.store.GetCached(ctx, store.NamespaceSearch, key)
	if err != nil {
		log.Warn("homepage: cache read failed", zap.Error(err))
	} else if data != nil {
		var results []model.SearchResult
		if err := json.Unmarshal(data, &results); err == nil {
			log.Debug("homepage: cache hit")
			return results, nil
		}
		log.Warn("homepage: discarding malformed cache entry")
	}

	results, err := c.next.Search(ctx, query, num)
	if err != nil {
		return nil, err
	}

	if err := c.put(ctx, key, results); err != nil {
		log.Warn("homepage: cache write failed", zap.Error(err))
	}
	return results, nil
}

func (c *CachedSearcher) put(ctx context.Context, key string, results []model.SearchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "homepage: encode search results")
	}
	return c.store.SetCached(ctx, store.NamespaceSearch, key, data, c.ttl)
}
