// Package store persists finished import sessions to PostgreSQL so that
// history and error reports survive process restarts.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"rosterimport/internal/importer"
)

// Postgres implements importer.Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a Postgres store.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the backing tables when they do not exist yet.
// Called once at startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS import_sessions (
	id               UUID PRIMARY KEY,
	schema_key       TEXT NOT NULL,
	file_name        TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL,
	total_rows       INT NOT NULL DEFAULT 0,
	committed        INT NOT NULL DEFAULT 0,
	rejected         INT NOT NULL DEFAULT 0,
	commit_failed    INT NOT NULL DEFAULT 0,
	cancelled        INT NOT NULL DEFAULT 0,
	fatal_error      TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS import_row_errors (
	session_id  UUID NOT NULL REFERENCES import_sessions(id) ON DELETE CASCADE,
	position    INT NOT NULL,
	row_number  INT NOT NULL,
	field       TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL,
	message     TEXT NOT NULL,
	PRIMARY KEY (session_id, position)
);

CREATE INDEX IF NOT EXISTS idx_import_sessions_started_at
	ON import_sessions (started_at DESC);
`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSummary stores a finished session and its ordered error report.
func (p *Postgres) SaveSummary(ctx context.Context, s importer.Summary) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id pgtype.UUID
	if err := id.Scan(s.SessionID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", s.SessionID, err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO import_sessions
	(id, schema_key, file_name, state, total_rows, committed, rejected,
	 commit_failed, cancelled, fatal_error, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, s.SchemaKey, s.FileName, string(s.State), s.TotalRows, s.Committed,
		s.RejectedAtValidation, s.CommitFailed, s.Cancelled, s.FatalError,
		s.StartedAt, s.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if len(s.Errors) > 0 {
		rows := make([][]any, 0, len(s.Errors))
		for i, e := range s.Errors {
			rows = append(rows, []any{id, i, e.Row, e.Field, e.Stage, e.Message})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"import_row_errors"},
			[]string{"session_id", "position", "row_number", "field", "stage", "message"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy row errors: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent sessions, newest first. Error lists
// are not populated; fetch them per session with GetErrors.
func (p *Postgres) ListSummaries(ctx context.Context, limit int) ([]importer.Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx, `
SELECT id, schema_key, file_name, state, total_rows, committed, rejected,
       commit_failed, cancelled, fatal_error, started_at
FROM import_sessions
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []importer.Summary
	for rows.Next() {
		var (
			s  importer.Summary
			id pgtype.UUID
			st string
		)
		if err := rows.Scan(&id, &s.SchemaKey, &s.FileName, &st, &s.TotalRows,
			&s.Committed, &s.RejectedAtValidation, &s.CommitFailed,
			&s.Cancelled, &s.FatalError, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.SessionID = uuidString(id)
		s.State = importer.SessionState(st)
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// GetErrors returns the persisted error report for one session in its
// original order.
func (p *Postgres) GetErrors(ctx context.Context, sessionID string) ([]importer.RowError, error) {
	var id pgtype.UUID
	if err := id.Scan(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	rows, err := p.pool.Query(ctx, `
SELECT row_number, field, stage, message
FROM import_row_errors
WHERE session_id = $1
ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query row errors: %w", err)
	}
	defer rows.Close()

	var out []importer.RowError
	for rows.Next() {
		var e importer.RowError
		if err := rows.Scan(&e.Row, &e.Field, &e.Stage, &e.Message); err != nil {
			return nil, fmt.Errorf("scan row error: %w", err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x",
		u.Bytes[0:4], u.Bytes[4:6], u.Bytes[6:8], u.Bytes[8:10], u.Bytes[10:16])
}
