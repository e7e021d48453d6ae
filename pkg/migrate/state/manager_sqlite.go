package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	scope_key         TEXT PRIMARY KEY,
	source_table      TEXT NOT NULL,
	destination_table TEXT NOT NULL,
	committed_offset  INTEGER NOT NULL,
	run_id            TEXT NOT NULL,
	rows_written      INTEGER NOT NULL,
	rows_rejected     INTEGER NOT NULL,
	batches           INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_logs (
	run_id            TEXT PRIMARY KEY,
	source_table      TEXT NOT NULL,
	destination_table TEXT NOT NULL,
	start_offset      INTEGER NOT NULL,
	end_offset        INTEGER NOT NULL DEFAULT 0,
	rows_written      INTEGER NOT NULL DEFAULT 0,
	status            VARCHAR(50) NOT NULL,
	err_msg           TEXT NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS run_logs_created_at ON run_logs (created_at);
`

// SqliteManager : checkpoints and run log in one local sqlite file
type SqliteManager struct {
	DB  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewSqliteManager : opens (creating if needed) the state database at path
func NewSqliteManager(ctx context.Context, path string, log zerolog.Logger) (*SqliteManager, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("state : open %s : %w", path, err)
	}
	// one writer, the committer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state : could not migrate %s : %w", path, err)
	}
	return &SqliteManager{DB: db, log: log.With().Str("component", "state").Logger(), now: time.Now}, nil
}

func (m *SqliteManager) Get(ctx context.Context, scope Scope) (*Checkpoint, error) {
	cp := Checkpoint{Scope: scope}
	var updated int64
	err := m.DB.QueryRowContext(ctx, `
		SELECT committed_offset, run_id, rows_written, rows_rejected, batches, updated_at
		FROM checkpoints WHERE scope_key = ?`, scope.Key()).
		Scan(&cp.Offset, &cp.RunID, &cp.Rows, &cp.Rejected, &cp.Batches, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state : get checkpoint : %w", err)
	}
	cp.UpdatedAt = time.UnixMilli(updated).UTC()
	return &cp, nil
}

func (m *SqliteManager) Set(ctx context.Context, cp *Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = m.now().UTC()
	}
	_, err := m.DB.ExecContext(ctx, `
		INSERT INTO checkpoints (scope_key, source_table, destination_table, committed_offset, run_id, rows_written, rows_rejected, batches, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope_key) DO UPDATE SET
			committed_offset = excluded.committed_offset,
			run_id = excluded.run_id,
			rows_written = excluded.rows_written,
			rows_rejected = excluded.rows_rejected,
			batches = excluded.batches,
			updated_at = excluded.updated_at`,
		cp.Scope.Key(), cp.Scope.SourceTable, cp.Scope.DestinationTable, cp.Offset, cp.RunID,
		cp.Rows, cp.Rejected, cp.Batches, cp.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("state : set checkpoint : %w", err)
	}
	return nil
}

func (m *SqliteManager) Reset(ctx context.Context, scope Scope) error {
	if _, err := m.DB.ExecContext(ctx, `DELETE FROM checkpoints WHERE scope_key = ?`, scope.Key()); err != nil {
		return fmt.Errorf("state : reset checkpoint : %w", err)
	}
	return nil
}

func (m *SqliteManager) Close() error {
	return m.DB.Close()
}

func (m *SqliteManager) GetLastRun(ctx context.Context) (*RunLog, error) {
	return m.queryRun(ctx, `ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

func (m *SqliteManager) GetRunLog(ctx context.Context, runID string) (*RunLog, error) {
	return m.queryRun(ctx, `WHERE run_id = ?`, runID)
}

func (m *SqliteManager) queryRun(ctx context.Context, where string, args ...any) (*RunLog, error) {
	var r RunLog
	var created, updated int64
	err := m.DB.QueryRowContext(ctx, `
		SELECT run_id, source_table, destination_table, start_offset, end_offset, rows_written, status, err_msg, created_at, updated_at
		FROM run_logs `+where, args...).
		Scan(&r.RunID, &r.SourceTable, &r.DestinationTable, &r.StartOffset, &r.EndOffset, &r.RowsWritten, &r.Status, &r.ErrMsg, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state : read run log : %w", err)
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return &r, nil
}

func (m *SqliteManager) InitRunLog(ctx context.Context, runID string, scope Scope, startOffset int64) error {
	now := m.now().UnixMilli()
	_, err := m.DB.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, source_table, destination_table, start_offset, end_offset, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, scope.SourceTable, scope.DestinationTable, startOffset, startOffset, Started, now, now)
	if err != nil {
		return fmt.Errorf("state : init run log : %w", err)
	}
	return nil
}

func (m *SqliteManager) PassedRunLog(ctx context.Context, runID string, endOffset, rows int64) error {
	return m.updateRunStatus(ctx, runID, Success, endOffset, rows, nil)
}

func (m *SqliteManager) FailedRunLog(ctx context.Context, runID string, endOffset, rows int64, err error) error {
	return m.updateRunStatus(ctx, runID, Failed, endOffset, rows, err)
}

func (m *SqliteManager) updateRunStatus(ctx context.Context, runID string, status RunLogState, endOffset, rows int64, err error) error {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	_, errTx := m.DB.ExecContext(ctx, `
		UPDATE run_logs SET status = ?, end_offset = ?, rows_written = ?, err_msg = ?, updated_at = ?
		WHERE run_id = ?`, status, endOffset, rows, errMsg, m.now().UnixMilli(), runID)
	if errTx != nil {
		return fmt.Errorf("state : update run log : %w", errTx)
	}
	return nil
}

func (m *SqliteManager) OnShutDownEv(ctx context.Context, scope Scope) error {
	res, err := m.DB.ExecContext(ctx, `
		UPDATE run_logs SET status = ?, updated_at = ?
		WHERE status = ? AND source_table = ? AND destination_table = ?`,
		Aborted, m.now().UnixMilli(), Started, scope.SourceTable, scope.DestinationTable)
	if err != nil {
		return fmt.Errorf("state : abort runs : %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		m.log.Warn().Int64("runs", n).Msgf("runs had status %s, moving them to %s", Started, Aborted)
	}
	return nil
}
