package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/internal/controller"
	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/internal/evaluator"
	"github.com/voicelab/scriptloop/internal/improver"
	"github.com/voicelab/scriptloop/internal/personas"
	"github.com/voicelab/scriptloop/internal/simulator"
)

// ErrRunNotFound is returned when the referenced run does not exist.
var ErrRunNotFound = errors.New("run not found")

// StartRunRequest carries the optional initial script and per-run budget
// overrides. Zero-valued overrides fall back to the configured defaults.
type StartRunRequest struct {
	Script       *domain.Script `json:"script,omitempty"`
	MaxRounds    int            `json:"max_rounds,omitempty"`
	PersonaCount int            `json:"persona_count,omitempty"`
	MaxTurns     int            `json:"max_turns,omitempty"`
}

// StartRun validates the request, records the run and launches its controller
// in the background. The returned run is in RUNNING state.
func (s *Service) StartRun(ctx context.Context, req StartRunRequest) (*domain.Run, error) {
	if req.Script != nil {
		if err := req.Script.Validate(); err != nil {
			return nil, err
		}
	}
	if req.MaxRounds < 0 {
		return nil, &domain.ConfigError{Field: "max_rounds", Reason: "must be >= 0"}
	}

	cfg := controller.Config{
		MaxRounds:           s.config.MaxRounds,
		PersonaCount:        s.config.PersonaCount,
		MaxTurns:            s.config.MaxTurns,
		SimConcurrency:      s.config.SimConcurrency,
		ImprovementPatience: s.config.ImprovementPatience,
		FailureTolerance:    s.config.FailureTolerance,
		Thresholds:          s.config.Thresholds,
		Weights:             s.config.Weights,
		RegressionTolerance: s.config.RegressionTolerance,
	}
	if req.MaxRounds > 0 {
		cfg.MaxRounds = req.MaxRounds
	}
	if req.PersonaCount > 0 {
		cfg.PersonaCount = req.PersonaCount
	}
	if req.MaxTurns > 0 {
		cfg.MaxTurns = req.MaxTurns
	}

	runID := "run_" + uuid.New().String()[:8]
	run := &domain.Run{
		ID:        runID,
		Status:    domain.RunStatusRunning,
		State:     domain.StateInit,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	log := s.log.WithField("run_id", runID)
	ctrl := controller.New(
		personas.NewGenerator(s.generator, log.WithField("component", "personas")),
		simulator.New(s.generator, log.WithField("component", "simulator")),
		evaluator.New(s.policyEngine, log.WithField("component", "evaluator")),
		improver.New(s.generator, log.WithField("component", "improver")),
		cfg,
		log.WithField("component", "controller"),
	)
	ctrl.Sink = s.store
	ctrl.OnRound = func(p domain.Progress) { s.broadcast(runID, p) }

	// The run outlives the HTTP request; cancellation happens through
	// CancelRun, not the request context.
	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.active[runID] = &activeRun{
		cancel:      cancel,
		subscribers: make(map[chan domain.Progress]struct{}),
	}
	s.mu.Unlock()

	go s.execute(runCtx, cancel, runID, ctrl, req.Script)

	return run, nil
}

func (s *Service) execute(ctx context.Context, cancel func(), runID string, ctrl *controller.Controller, initial *domain.Script) {
	defer cancel()
	defer s.release(runID)

	log := s.log.WithField("run_id", runID)

	result, err := ctrl.Run(ctx, runID, initial)
	if err != nil {
		log.WithError(err).Error("run aborted")
		if cerr := s.store.CompleteRun(context.Background(), runID, domain.RunStatusFailed, &domain.FinalResult{
			State:      domain.StateFailed,
			StopReason: domain.StopReasonFailed,
		}); cerr != nil {
			log.WithError(cerr).Error("failed to record aborted run")
		}
		return
	}

	status := runStatus(result)
	if cerr := s.store.CompleteRun(context.Background(), runID, status, result); cerr != nil {
		log.WithError(cerr).Error("failed to record run result")
	}
	log.WithFields(logrus.Fields{
		"status":      status,
		"stop_reason": result.StopReason,
		"rounds_run":  result.RoundsRun,
	}).Info("run finished")
}

func runStatus(result *domain.FinalResult) domain.RunStatus {
	switch {
	case result.StopReason == domain.StopReasonCancelled:
		return domain.RunStatusCancelled
	case result.State == domain.StateFailed:
		return domain.RunStatusFailed
	default:
		return domain.RunStatusDone
	}
}

// CancelRun requests cancellation of an active run. The controller honors it
// at the next round boundary. Cancelling a finished run is a no-op that
// reports false.
func (s *Service) CancelRun(ctx context.Context, runID string) (bool, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return false, err
	}
	if run == nil {
		return false, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	s.mu.Lock()
	ar, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	ar.cancel()
	return true, nil
}

// GetRun retrieves a stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns lists stored runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	return s.store.ListRuns(ctx, limit)
}

// ListRounds retrieves the persisted rounds of a run.
func (s *Service) ListRounds(ctx context.Context, runID string) ([]*domain.Round, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return s.store.ListRounds(ctx, runID)
}

// ListTranscripts retrieves the transcripts of one round of a run.
func (s *Service) ListTranscripts(ctx context.Context, runID string, roundIndex int) ([]*domain.Transcript, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return s.store.ListTranscripts(ctx, runID, roundIndex)
}

// BestScript retrieves the best script and metrics of a finished run. Both
// are nil while the run is still in progress.
func (s *Service) BestScript(ctx context.Context, runID string) (*domain.Script, *domain.Metrics, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return s.store.GetBestScript(ctx, runID)
}
