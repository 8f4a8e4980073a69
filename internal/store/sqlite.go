package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix seconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS api_cache (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires_at ON api_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, stage, input, output string) (*model.Run, error) {
	id := uuid.New().String()
	now := s.now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, input, output, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, stage, input, output, string(model.RunStatusRunning), now.Unix(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, runErr string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(statsJSON), runErr, s.now().UTC().Unix(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stage, input, output, status, stats, error, created_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanSQLiteRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, stage, input, output, status, stats, error, created_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCached(ctx context.Context, namespace, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM api_cache WHERE namespace = ? AND key = ? AND expires_at > ?`,
		namespace, key, s.now().UTC().Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached %s/%s", namespace, key)
	}
	return data, nil
}

func (s *SQLiteStore) SetCached(ctx context.Context, namespace, key string, data []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_cache (namespace, key, data, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		namespace, key, data, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "sqlite: set cached %s/%s", namespace, key)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_cache WHERE expires_at <= ?`, s.now().UTC().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString
	var created int64
	var finished sql.NullInt64

	err := row.Scan(&r.ID, &r.Stage, &r.Input, &r.Output, &r.Status, &statsJSON, &r.Error, &created, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.CreatedAt = time.Unix(created, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}
