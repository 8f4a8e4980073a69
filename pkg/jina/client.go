// Package jina is a client for the Jina Reader (r.jina.ai) and Search
// (s.jina.ai) endpoints, used to fetch rendered company pages and as an
// alternative web search backend.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	service              = "jina"
	defaultBaseURL       = "https://r.jina.ai"
	defaultSearchBaseURL = "https://s.jina.ai"
)

// Client reads pages and searches the web through Jina. Each call is a
// single attempt; callers decide how to retry.
type Client interface {
	// Read renders target (a bare domain or URL) and returns its text.
	Read(ctx context.Context, target string) (*ReadResponse, error)
	// Search runs a web search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the JSON envelope of a Reader call.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData is the rendered page.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage is the token count Jina bills for the page.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the JSON envelope of a Search call.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	num int
}

// WithNum keeps at most n results.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) {
		o.num = n
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Reader endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSearchBaseURL overrides the Search endpoint.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.searchBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero disables the cap.
// Keyless use is throttled hard by Jina, so a cap avoids 429 storms.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	limiter       *rate.Limiter
}

// NewClient creates a Jina client. apiKey may be empty; Jina then serves
// requests at its anonymous rate.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		searchBaseURL: defaultSearchBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, target string) (*ReadResponse, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, eris.Wrap(resilience.ErrNotFound, "jina: empty read target")
	}

	var out ReadResponse
	status, err := c.getJSON(ctx, c.baseURL+"/"+target, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "jina: read %s", target)
	}
	if status != http.StatusOK {
		return nil, eris.Wrapf(resilience.NewStatusError(service, status, nil), "jina: read %s", target)
	}
	return &out, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := searchOpts{}
	for _, opt := range opts {
		opt(&so)
	}

	var out SearchResponse
	status, err := c.getJSON(ctx, c.searchBaseURL+"/"+url.PathEscape(query), &out)
	if err != nil {
		return nil, eris.Wrapf(err, "jina: search %q", query)
	}
	// 422 means the query has no results.
	if status == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: status}, nil
	}

	if so.num > 0 && len(out.Data) > so.num {
		out.Data = out.Data[:so.num]
	}
	return &out, nil
}

// getJSON issues a GET and decodes a 200 body into out. A 422 is returned
// as a status without error; any other non-200 status is a StatusError.
func (c *httpClient) getJSON(ctx context.Context, reqURL string, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, eris.Wrap(err, "rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	// Let Jina give up rendering before our deadline does.
	if deadline, ok := ctx.Deadline(); ok {
		if secs := int(time.Until(deadline).Seconds()); secs > 0 {
			req.Header.Set("X-Timeout", strconv.Itoa(secs))
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, eris.Wrap(err, "read response body")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return resp.StatusCode, nil
	default:
		return resp.StatusCode, resilience.NewStatusError(service, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, eris.Wrapf(resilience.ErrMalformed, "unmarshal response: %v", err)
	}
	return resp.StatusCode, nil
}
