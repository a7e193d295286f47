// Package repository persists tuning runs, their rounds and the simulated
// call transcripts.
package repository

import (
	"context"

	"github.com/voicelab/scriptloop/internal/domain"
)

// Store is the persistence interface for tuning runs. Lookups return
// (nil, nil) when the record does not exist.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	// CompleteRun records the final state of a run, including the best script
	// and its metrics when the run produced any.
	CompleteRun(ctx context.Context, runID string, status domain.RunStatus, result *domain.FinalResult) error
	GetBestScript(ctx context.Context, runID string) (*domain.Script, *domain.Metrics, error)

	SaveRound(ctx context.Context, runID string, round *domain.Round) error
	ListRounds(ctx context.Context, runID string) ([]*domain.Round, error)
	ListTranscripts(ctx context.Context, runID string, roundIndex int) ([]*domain.Transcript, error)

	Close() error
}
