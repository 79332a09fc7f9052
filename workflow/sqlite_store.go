package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	dbPath  string
	options SQLiteStoreOptions
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStoreOptions configures the SQLite store.
type SQLiteStoreOptions struct {
	QueryTimeout      time.Duration
	PragmaJournalMode string
	PragmaSyncMode    string
	MaxConnections    int
}

// DefaultSQLiteStoreOptions returns sensible defaults.
func DefaultSQLiteStoreOptions() SQLiteStoreOptions {
	return SQLiteStoreOptions{
		QueryTimeout:      30 * time.Second,
		PragmaJournalMode: "WAL",
		PragmaSyncMode:    "NORMAL",
		MaxConnections:    10,
	}
}

// NewSQLiteStore creates a new SQLite-backed workflow store at the given path.
func NewSQLiteStore(dbPath string, options SQLiteStoreOptions) (*SQLiteStore, error) {
	if options.QueryTimeout == 0 {
		options = DefaultSQLiteStoreOptions()
	}
	store := &SQLiteStore{dbPath: dbPath, options: options}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(s.options.MaxConnections)

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", s.options.PragmaJournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", s.options.PragmaSyncMode),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			execution_id     TEXT PRIMARY KEY,
			scenario_id      TEXT,
			model_id         TEXT,
			status           TEXT NOT NULL,
			start_time       INTEGER NOT NULL,
			end_time         INTEGER,
			duration_ms      INTEGER,
			iterations       INTEGER,
			total_tool_calls INTEGER,
			final_response   TEXT,
			error            TEXT,
			metadata         TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			id           TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL,
			type         TEXT NOT NULL,
			iteration    INTEGER,
			timestamp    INTEGER NOT NULL,
			status       TEXT,
			content      TEXT,
			FOREIGN KEY (execution_id) REFERENCES executions(execution_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_model ON executions(model_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_start ON executions(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_execution ON steps(execution_id)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, record *Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.options.QueryTimeout)
	defer cancel()

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endTime int64
	if !record.EndTime.IsZero() {
		endTime = record.EndTime.UnixMilli()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO executions
		(execution_id, scenario_id, model_id, status, start_time, end_time,
		 duration_ms, iterations, total_tool_calls, final_response, error, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ExecutionID, record.ScenarioID, record.ModelID, record.Status,
		record.StartTime.UnixMilli(), endTime, record.Duration.Milliseconds(),
		record.Iterations, record.TotalToolCalls, record.FinalResponse,
		record.Error, string(metadata))
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM steps WHERE execution_id = ?`, record.ExecutionID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}
	for _, step := range record.Steps {
		content, err := json.Marshal(step.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal step content: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps (id, execution_id, type, iteration, timestamp, status, content)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			step.ID, step.ExecutionID, string(step.Type), step.Iteration,
			step.Timestamp.UnixMilli(), step.Status, string(content))
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRecord(ctx context.Context, executionID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.QueryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, scenario_id, model_id, status, start_time, end_time,
		       duration_ms, iterations, total_tool_calls, final_response, error, metadata
		FROM executions WHERE execution_id = ?`, executionID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read execution: %w", err)
	}

	steps, err := s.getSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}
	record.Steps = steps
	return record, nil
}

func (s *SQLiteStore) getSteps(ctx context.Context, executionID string) ([]*Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, type, iteration, timestamp, status, content
		FROM steps WHERE execution_id = ? ORDER BY timestamp ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		var step Step
		var stepType, content string
		var timestamp int64
		if err := rows.Scan(&step.ID, &step.ExecutionID, &stepType,
			&step.Iteration, &timestamp, &step.Status, &content); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Type = StepType(stepType)
		step.Timestamp = time.UnixMilli(timestamp)
		if content != "" && content != "null" {
			if err := json.Unmarshal([]byte(content), &step.Content); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step content: %w", err)
			}
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter Filter) ([]*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.QueryTimeout)
	defer cancel()

	query := strings.Builder{}
	query.WriteString(`
		SELECT execution_id, scenario_id, model_id, status, start_time, end_time,
		       duration_ms, iterations, total_tool_calls, final_response, error, metadata
		FROM executions WHERE 1=1`)
	var args []any
	if filter.Status != "" {
		query.WriteString(" AND status = ?")
		args = append(args, filter.Status)
	}
	if filter.ModelID != "" {
		query.WriteString(" AND model_id = ?")
		args = append(args, filter.ModelID)
	}
	if !filter.Since.IsZero() {
		query.WriteString(" AND start_time >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		query.WriteString(" AND start_time <= ?")
		args = append(args, filter.Until.UnixMilli())
	}
	query.WriteString(" ORDER BY start_time DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query.WriteString(" LIMIT -1")
		}
		query.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, executionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.options.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM steps WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("failed to delete steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM executions WHERE execution_id = ?`, executionID); err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var startTime, endTime, durationMs int64
	var metadata string
	err := row.Scan(&record.ExecutionID, &record.ScenarioID, &record.ModelID,
		&record.Status, &startTime, &endTime, &durationMs,
		&record.Iterations, &record.TotalToolCalls, &record.FinalResponse,
		&record.Error, &metadata)
	if err != nil {
		return nil, err
	}
	record.StartTime = time.UnixMilli(startTime)
	if endTime > 0 {
		record.EndTime = time.UnixMilli(endTime)
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &record, nil
}
