// Package serper is a client for the Serper Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	service        = "serper"
	defaultBaseURL = "https://google.serper.dev"
)

// Client performs Serper search operations.
type Client interface {
	Search(ctx context.Context, query string, num int) (*SearchResponse, error)
}

// SearchResponse is the response from the /search endpoint.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
}

// OrganicResult is one ranked web result.
type OrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero disables the cap.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Serper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

func (c *httpClient) Search(ctx context.Context, query string, num int) (*SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serper: rate limit wait")
		}
	}

	body, err := json.Marshal(searchRequest{Q: query, Num: num})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewStatusError(service, resp.StatusCode, respBody), "serper: search")
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(resilience.ErrMalformed, "serper: unmarshal response: %v", err)
	}

	return &result, nil
}
