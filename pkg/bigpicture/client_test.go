package bigpicture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

func TestFind_OK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/companies/find", r.URL.Path)
		assert.Equal(t, "etched.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "bp-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"domain":"etched.com","foundedYear":2022}`))
	}))
	defer srv.Close()

	resp, err := NewClient("bp-key", WithBaseURL(srv.URL)).Find(context.Background(), "etched.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"domain":"etched.com","foundedYear":2022}`, string(resp.Body))
	assert.False(t, resp.Pending())
	assert.False(t, resp.NotFound())
}

func TestFind_PendingAndNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		pending  bool
		notFound bool
	}{
		{http.StatusAccepted, true, false},
		{http.StatusNotFound, false, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		resp, err := NewClient("k", WithBaseURL(srv.URL)).Find(context.Background(), "sierra.ai")
		srv.Close()

		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode)
		assert.Equal(t, tt.pending, resp.Pending())
		assert.Equal(t, tt.notFound, resp.NotFound())
	}
}

func TestFind_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`invalid key`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).Find(context.Background(), "sierra.ai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid key")
	assert.Equal(t, resilience.KindHTTPStatus, resilience.Kind(err))
}

func TestFind_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Find(ctx, "sierra.ai")
	require.Error(t, err)
}

func TestWithRateLimit_Throttles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(20))
	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := client.Find(context.Background(), "sierra.ai")
		require.NoError(t, err)
	}
	// Burst of 20, then 5 more at 20/s.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key").(*httpClient)
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Nil(t, c.limiter)
	assert.Equal(t, 30*time.Second, c.http.Timeout)
}
