package state

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogManager : run log for stores that have nowhere to keep one. transitions are logged and
// remembered for the life of the process only
type LogManager struct {
	mu   sync.Mutex
	runs []*RunLog
	log  zerolog.Logger
}

func NewLogManager(log zerolog.Logger) *LogManager {
	return &LogManager{log: log.With().Str("component", "runlog").Logger()}
}

func (m *LogManager) find(runID string) *RunLog {
	for _, r := range m.runs {
		if r.RunID == runID {
			return r
		}
	}
	return nil
}

func (m *LogManager) GetLastRun(context.Context) (*RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, nil
	}
	r := *m.runs[len(m.runs)-1]
	return &r, nil
}

func (m *LogManager) GetRunLog(_ context.Context, runID string) (*RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(runID); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *LogManager) InitRunLog(_ context.Context, runID string, scope Scope, startOffset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.runs = append(m.runs, &RunLog{
		RunID: runID, SourceTable: scope.SourceTable, DestinationTable: scope.DestinationTable,
		StartOffset: startOffset, EndOffset: startOffset, Status: Started, CreatedAt: now, UpdatedAt: now,
	})
	m.log.Info().Str("run_id", runID).Str("status", string(Started)).Int64("start_offset", startOffset).Msg("run log")
	return nil
}

func (m *LogManager) PassedRunLog(_ context.Context, runID string, endOffset, rows int64) error {
	m.update(runID, Success, endOffset, rows, nil)
	return nil
}

func (m *LogManager) FailedRunLog(_ context.Context, runID string, endOffset, rows int64, err error) error {
	m.update(runID, Failed, endOffset, rows, err)
	return nil
}

func (m *LogManager) update(runID string, status RunLogState, endOffset, rows int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(runID)
	if r == nil {
		return
	}
	r.Status, r.EndOffset, r.RowsWritten, r.UpdatedAt = status, endOffset, rows, time.Now().UTC()
	if err != nil {
		r.ErrMsg = err.Error()
	}
	m.log.Info().Str("run_id", runID).Str("status", string(status)).Int64("end_offset", endOffset).Int64("rows", rows).Msg("run log")
}

func (m *LogManager) OnShutDownEv(_ context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.Status == Started && r.SourceTable == scope.SourceTable && r.DestinationTable == scope.DestinationTable {
			r.Status, r.UpdatedAt = Aborted, time.Now().UTC()
			m.log.Warn().Str("run_id", r.RunID).Msgf("run had status %s, moving it to %s", Started, Aborted)
		}
	}
	return nil
}
