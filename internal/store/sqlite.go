package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Cache timestamps are unix seconds so expiry compares as integers.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	detail      TEXT NOT NULL DEFAULT '',
	records     INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS page_cache (
	url         TEXT PRIMARY KEY,
	final_url   TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	body        BLOB NOT NULL,
	fetched_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage);
CREATE INDEX IF NOT EXISTS idx_stage_runs_started_at ON stage_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, stage string) (*model.StageRun, error) {
	run := &model.StageRun{
		ID:        uuid.New().String(),
		Stage:     stage,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Stage, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %s", stage)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status model.RunStatus, records int, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stage_runs SET status = ?, records = ?, detail = ?, finished_at = ? WHERE id = ?`,
		string(status), records, detail, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stage, status, detail, records, started_at, finished_at FROM stage_runs WHERE id = ?`,
		id,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.StageRun, error) {
	query := `SELECT id, stage, status, detail, records, started_at, finished_at FROM stage_runs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.StageRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// GetPage returns the cached page for url, or nil when there is no entry or
// it expired at or before now.
func (s *SQLiteStore) GetPage(ctx context.Context, url string, now time.Time) (*model.CachedPage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, final_url, status_code, body, fetched_at, expires_at FROM page_cache
		 WHERE url = ? AND expires_at > ?`,
		url, now.Unix(),
	)

	var p model.CachedPage
	var fetched, expires int64
	err := row.Scan(&p.URL, &p.FinalURL, &p.StatusCode, &p.Body, &fetched, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get page %s", url)
	}
	p.FetchedAt = time.Unix(fetched, 0).UTC()
	p.ExpiresAt = time.Unix(expires, 0).UTC()
	return &p, nil
}

// PutPage inserts or replaces the cache entry for page.URL.
func (s *SQLiteStore) PutPage(ctx context.Context, page model.CachedPage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, final_url, status_code, body, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			final_url = excluded.final_url,
			status_code = excluded.status_code,
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		page.URL, page.FinalURL, page.StatusCode, page.Body, page.FetchedAt.Unix(), page.ExpiresAt.Unix(),
	)
	return eris.Wrapf(err, "sqlite: put page %s", page.URL)
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= ?`, now.Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
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

func scanRun(row scannable) (*model.StageRun, error) {
	var r model.StageRun
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Stage, &r.Status, &r.Detail, &r.Records, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
