package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Stages are sequential; a small pool is plenty.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrich_runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS enrich_api_cache (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_enrich_runs_stage ON enrich_runs(stage);
CREATE INDEX IF NOT EXISTS idx_enrich_runs_created_at ON enrich_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_enrich_api_cache_expires_at ON enrich_api_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, stage, input, output string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrich_runs (id, stage, input, output, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, stage, input, output, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Stage:     stage,
		Input:     input,
		Output:    output,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, runErr string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE enrich_runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), statsJSON, runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, stage, input, output, status, stats, error, created_at, finished_at FROM enrich_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, stage, input, output, status, stats, error, created_at, finished_at FROM enrich_runs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		args = append(args, filter.Stage)
		query += ` AND stage = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	args = append(args, listLimit(filter.Limit))
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs scan")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCached(ctx context.Context, namespace, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM enrich_api_cache WHERE namespace = $1 AND key = $2 AND expires_at > now()`,
		namespace, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached %s/%s", namespace, key)
	}
	return data, nil
}

func (s *PostgresStore) SetCached(ctx context.Context, namespace, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrich_api_cache (namespace, key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (namespace, key) DO UPDATE SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		namespace, key, data, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached %s/%s", namespace, key)
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM enrich_api_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var statsJSON []byte

	err := row.Scan(&r.ID, &r.Stage, &r.Input, &r.Output, &status, &statsJSON, &r.Error, &r.CreatedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.Status = model.RunStatus(status)

	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "unmarshal stats")
		}
	}
	return &r, nil
}
