package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/voicelab/scriptloop/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			state TEXT,
			stop_reason TEXT,
			rounds_run INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			best_script TEXT,
			best_metrics TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			run_id TEXT NOT NULL,
			round_index INTEGER NOT NULL,
			script TEXT NOT NULL,
			personas TEXT,
			metrics TEXT,
			feedback TEXT,
			accepted INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			PRIMARY KEY (run_id, round_index),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			transcript_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			round_index INTEGER NOT NULL,
			script_id TEXT NOT NULL,
			script_version INTEGER NOT NULL,
			persona_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			end_section_id TEXT,
			turns TEXT NOT NULL,
			started_at DATETIME,
			ended_at DATETIME,
			FOREIGN KEY (run_id, round_index) REFERENCES rounds(run_id, round_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_round ON transcripts(run_id, round_index)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, state, rounds_run, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.State, run.RoundsRun, run.CreatedAt)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, status, state, stop_reason, rounds_run, error, created_at, ended_at FROM runs WHERE run_id = ?`,
		runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	query := `SELECT run_id, status, state, stop_reason, rounds_run, error, created_at, ended_at FROM runs ORDER BY created_at DESC, run_id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var state, stopReason, errData sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.Status, &state, &stopReason, &run.RoundsRun, &errData, &run.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	if state.Valid {
		run.State = domain.State(state.String)
	}
	if stopReason.Valid {
		run.StopReason = domain.StopReason(stopReason.String)
	}
	if errData.Valid {
		run.Error = errData.String
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// UpdateRunStatus updates the status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`,
		status, runID)
	return err
}

// CompleteRun records the terminal state and outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, result *domain.FinalResult) error {
	now := time.Now().UTC()

	var bestScript, bestMetrics, stopReason, state sql.NullString
	roundsRun := 0
	if result != nil {
		state = sql.NullString{String: string(result.State), Valid: true}
		stopReason = sql.NullString{String: string(result.StopReason), Valid: true}
		roundsRun = result.RoundsRun
		if result.BestScript != nil {
			data, err := json.Marshal(result.BestScript)
			if err != nil {
				return fmt.Errorf("marshal best script: %w", err)
			}
			bestScript = sql.NullString{String: string(data), Valid: true}
		}
		if result.BestMetrics != nil {
			data, err := json.Marshal(result.BestMetrics)
			if err != nil {
				return fmt.Errorf("marshal best metrics: %w", err)
			}
			bestMetrics = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, state = ?, stop_reason = ?, rounds_run = ?, best_script = ?, best_metrics = ?, ended_at = ? WHERE run_id = ?`,
		status, state, stopReason, roundsRun, bestScript, bestMetrics, now, runID)
	return err
}

// GetBestScript returns the best script and metrics recorded for a finished
// run, or nils when none were recorded.
func (s *SQLiteStore) GetBestScript(ctx context.Context, runID string) (*domain.Script, *domain.Metrics, error) {
	var bestScript, bestMetrics sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT best_script, best_metrics FROM runs WHERE run_id = ?`,
		runID).Scan(&bestScript, &bestMetrics)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var script *domain.Script
	if bestScript.Valid {
		script = &domain.Script{}
		if err := json.Unmarshal([]byte(bestScript.String), script); err != nil {
			return nil, nil, fmt.Errorf("unmarshal best script: %w", err)
		}
	}
	var metrics *domain.Metrics
	if bestMetrics.Valid {
		metrics = &domain.Metrics{}
		if err := json.Unmarshal([]byte(bestMetrics.String), metrics); err != nil {
			return nil, nil, fmt.Errorf("unmarshal best metrics: %w", err)
		}
	}
	return script, metrics, nil
}

// SaveRound persists a round and its transcripts in one transaction.
func (s *SQLiteStore) SaveRound(ctx context.Context, runID string, round *domain.Round) error {
	script, err := json.Marshal(round.Script)
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	personas, err := json.Marshal(round.Personas)
	if err != nil {
		return fmt.Errorf("marshal personas: %w", err)
	}
	metrics, err := json.Marshal(round.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	feedback, err := json.Marshal(round.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (run_id, round_index, script, personas, metrics, feedback, accepted, failed, error, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, round.Index, string(script), string(personas), string(metrics), string(feedback),
		round.Accepted, round.Failed, nullString(round.Error), round.StartedAt, round.EndedAt)
	if err != nil {
		return err
	}

	for _, tr := range round.Transcripts {
		turns, err := json.Marshal(tr.Turns)
		if err != nil {
			return fmt.Errorf("marshal turns for %s: %w", tr.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transcripts (transcript_id, run_id, round_index, script_id, script_version, persona_id, outcome, end_section_id, turns, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tr.ID, runID, round.Index, tr.ScriptID, tr.ScriptVersion, tr.PersonaID,
			tr.Outcome, nullString(tr.EndSectionID), string(turns), tr.StartedAt, tr.EndedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRounds retrieves a run's rounds in order, without transcripts.
func (s *SQLiteStore) ListRounds(ctx context.Context, runID string) ([]*domain.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT round_index, script, personas, metrics, feedback, accepted, failed, error, started_at, ended_at
		 FROM rounds WHERE run_id = ? ORDER BY round_index ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*domain.Round
	for rows.Next() {
		var round domain.Round
		var script string
		var personas, metrics, feedback, errData sql.NullString
		if err := rows.Scan(&round.Index, &script, &personas, &metrics, &feedback,
			&round.Accepted, &round.Failed, &errData, &round.StartedAt, &round.EndedAt); err != nil {
			return nil, err
		}
		round.Script = &domain.Script{}
		if err := json.Unmarshal([]byte(script), round.Script); err != nil {
			return nil, fmt.Errorf("unmarshal script for round %d: %w", round.Index, err)
		}
		if personas.Valid {
			if err := json.Unmarshal([]byte(personas.String), &round.Personas); err != nil {
				return nil, fmt.Errorf("unmarshal personas for round %d: %w", round.Index, err)
			}
		}
		if metrics.Valid {
			if err := json.Unmarshal([]byte(metrics.String), &round.Metrics); err != nil {
				return nil, fmt.Errorf("unmarshal metrics for round %d: %w", round.Index, err)
			}
		}
		if feedback.Valid {
			if err := json.Unmarshal([]byte(feedback.String), &round.Feedback); err != nil {
				return nil, fmt.Errorf("unmarshal feedback for round %d: %w", round.Index, err)
			}
		}
		if errData.Valid {
			round.Error = errData.String
		}
		rounds = append(rounds, &round)
	}
	return rounds, rows.Err()
}

// ListTranscripts retrieves the transcripts of one round.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, runID string, roundIndex int) ([]*domain.Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transcript_id, script_id, script_version, persona_id, outcome, end_section_id, turns, started_at, ended_at
		 FROM transcripts WHERE run_id = ? AND round_index = ? ORDER BY transcript_id ASC`,
		runID, roundIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcripts []*domain.Transcript
	for rows.Next() {
		var tr domain.Transcript
		var endSection sql.NullString
		var turns string
		if err := rows.Scan(&tr.ID, &tr.ScriptID, &tr.ScriptVersion, &tr.PersonaID,
			&tr.Outcome, &endSection, &turns, &tr.StartedAt, &tr.EndedAt); err != nil {
			return nil, err
		}
		if endSection.Valid {
			tr.EndSectionID = endSection.String
		}
		if err := json.Unmarshal([]byte(turns), &tr.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal turns for %s: %w", tr.ID, err)
		}
		transcripts = append(transcripts, &tr)
	}
	return transcripts, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
