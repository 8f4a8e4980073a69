package jina

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestRead_ReturnsPageAndUsage(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sierra.ai", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"title":"Sierra","url":"https://sierra.ai/",
			"content":"Sierra builds conversational AI agents.","usage":{"tokens":2150}}}`))
	})

	got, err := NewClient("test-key", WithBaseURL(srv.URL)).Read(context.Background(), "sierra.ai")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Code)
	assert.Equal(t, "Sierra", got.Data.Title)
	assert.Equal(t, "Sierra builds conversational AI agents.", got.Data.Content)
	assert.Equal(t, 2150, got.Data.Usage.Tokens)
}

func TestRead_KeylessOmitsAuthorization(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth := r.Header["Authorization"]
		assert.False(t, hasAuth)
		_ = json.NewEncoder(w).Encode(ReadResponse{Code: 200})
	})

	_, err := NewClient("", WithBaseURL(srv.URL)).Read(context.Background(), "etched.com")
	require.NoError(t, err)
}

func TestRead_PassesDeadlineAsTimeout(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		secs, err := strconv.Atoi(r.Header.Get("X-Timeout"))
		require.NoError(t, err)
		assert.InDelta(t, 10, secs, 1)
		_ = json.NewEncoder(w).Encode(ReadResponse{Code: 200})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := NewClient("k", WithBaseURL(srv.URL)).Read(ctx, "sierra.ai")
	require.NoError(t, err)
}

func TestRead_NoDeadlineNoTimeoutHeader(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Timeout"))
		_ = json.NewEncoder(w).Encode(ReadResponse{Code: 200})
	})

	_, err := NewClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "sierra.ai")
	require.NoError(t, err)
}

func TestRead_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unprocessable", http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var attempts atomic.Int32
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := NewClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "sierra.ai")
			require.Error(t, err)
			assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, resilience.KindHTTPStatus, resilience.Kind(err))
			assert.Equal(t, int32(1), attempts.Load(), "retries belong to the caller")
		})
	}
}

func TestRead_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	_, err := NewClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "sierra.ai")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrMalformed))
	assert.Equal(t, resilience.KindMalformed, resilience.Kind(err))
}

func TestRead_EmptyTarget(t *testing.T) {
	t.Parallel()

	_, err := NewClient("k", WithBaseURL("http://127.0.0.1:1")).Read(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrNotFound))
}

func TestRead_CanceledContext(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient("k", WithBaseURL(srv.URL)).Read(ctx, "sierra.ai")
	require.Error(t, err)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRead_RateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ReadResponse{Code: 200})
	})
	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0.001))

	// The first call consumes the only token.
	_, err := client.Read(context.Background(), "a.ai")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Read(ctx, "b.ai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestSearch_EscapesQueryAndTruncates(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Etched AI company official website", r.URL.Path)
		assert.Equal(t, "/Etched%20AI%20company%20official%20website", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(SearchResponse{Code: 200, Data: []SearchResult{
			{Title: "Etched", URL: "https://www.etched.com/", Description: "Transformer ASICs"},
			{URL: "https://b.ai"},
			{URL: "https://c.ai"},
		}})
	})

	got, err := NewClient("k", WithSearchBaseURL(srv.URL)).
		Search(context.Background(), "Etched AI company official website", WithNum(2))
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "https://www.etched.com/", got.Data[0].URL)
	assert.Equal(t, "Transformer ASICs", got.Data[0].Description)
}

func TestSearch_NoResults422(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	got, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Code)
	assert.Empty(t, got.Data)
}

func TestSearch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q")
		require.Error(t, err)
		assert.True(t, resilience.IsTransient(err))
	})

	t.Run("malformed", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})
		_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q")
		require.Error(t, err)
		assert.True(t, errors.Is(err, resilience.ErrMalformed))
	})
}

func TestNewClient_Options(t *testing.T) {
	t.Parallel()

	hc := NewClient("my-key").(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultSearchBaseURL, hc.searchBaseURL)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)
	assert.Nil(t, hc.limiter)

	custom := &http.Client{}
	hc = NewClient("k",
		WithBaseURL("https://reader.example/"),
		WithSearchBaseURL(""),
		WithHTTPClient(custom),
		WithRateLimit(2),
	).(*httpClient)
	assert.Equal(t, "https://reader.example", hc.baseURL)
	assert.Equal(t, defaultSearchBaseURL, hc.searchBaseURL, "empty override keeps the default")
	assert.Same(t, custom, hc.http)
	require.NotNil(t, hc.limiter)
}
