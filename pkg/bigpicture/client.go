// Package bigpicture is a client for the BigPicture company-data API.
package bigpicture

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	service        = "bigpicture"
	defaultBaseURL = "https://company.bigpicture.io/v1"
)

// Client looks up companies by domain.
type Client interface {
	// Find queries companies/find. 200, 202 and 404 replies are returned
	// as a Response; any other status is a *resilience.StatusError.
	Find(ctx context.Context, domain string) (*Response, error)
}

// Response is a raw companies/find reply. Body is only meaningful when
// StatusCode is 200.
type Response struct {
	StatusCode int
	Body       []byte
}

// Pending reports whether the lookup is still being processed upstream.
func (r *Response) Pending() bool { return r.StatusCode == http.StatusAccepted }

// NotFound reports whether the API has no data for the domain.
func (r *Response) NotFound() bool { return r.StatusCode == http.StatusNotFound }

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

// NewClient creates a BigPicture client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Find(ctx context.Context, domain string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "bigpicture: rate limit wait")
		}
	}

	reqURL := c.baseURL + "/companies/find?" + url.Values{"domain": {domain}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "bigpicture: create request")
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "bigpicture: find %s", domain)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "bigpicture: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNotFound:
		return &Response{StatusCode: resp.StatusCode, Body: body}, nil
	default:
		return nil, eris.Wrapf(resilience.NewStatusError(service, resp.StatusCode, body), "bigpicture: find %s", domain)
	}
}
