package store

import (
	"context"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Cache namespaces for upstream API responses.
const (
	NamespaceSearch  = "search"
	NamespaceProfile = "profile"
	NamespacePage    = "page"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Stage  string          `json:"stage,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store persists run history and caches raw upstream responses.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, stage, input, output string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// API cache. GetCached returns nil, nil on a miss or an expired entry.
	GetCached(ctx context.Context, namespace, key string) ([]byte, error)
	SetCached(ctx context.Context, namespace, key string, data []byte, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
