// Package controller drives the improvement loop: generate personas, simulate
// a batch of calls, evaluate the transcripts, and hand the feedback to the
// improver, round after round, until the thresholds are met or a budget runs
// out.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/internal/domain"
)

// PersonaSource produces a batch of customer personas. Implementations must
// always return a full batch, substituting stock personas when generation
// fails.
type PersonaSource interface {
	Generate(ctx context.Context, count int) []domain.Persona
}

// Simulator runs one scripted call against one persona.
type Simulator interface {
	Simulate(ctx context.Context, script *domain.Script, persona domain.Persona, maxTurns int) (*domain.Transcript, error)
}

// Evaluator scores a batch and explains what went wrong.
type Evaluator interface {
	Evaluate(ctx context.Context, transcripts []*domain.Transcript) (domain.Metrics, error)
	Analyze(ctx context.Context, transcripts []*domain.Transcript, m domain.Metrics, th domain.Thresholds) domain.Feedback
}

// Improver proposes the next candidate script.
type Improver interface {
	Improve(ctx context.Context, script *domain.Script, fb domain.Feedback, m domain.Metrics) (*domain.Script, error)
}

// RoundSink persists completed rounds. Persistence failures are logged, never
// fatal to the run.
type RoundSink interface {
	SaveRound(ctx context.Context, runID string, round *domain.Round) error
}

// Config bounds a run.
type Config struct {
	MaxRounds           int
	PersonaCount        int
	MaxTurns            int
	SimConcurrency      int
	ImprovementPatience int
	FailureTolerance    int
	Thresholds          domain.Thresholds
	Weights             domain.Weights
	// RegressionTolerance is how much a candidate may lose on any one metric
	// and still be accepted when it improves another.
	RegressionTolerance float64
}

func (c Config) validate() error {
	if c.MaxRounds < 0 {
		return &domain.ConfigError{Field: "max_rounds", Reason: "must be >= 0"}
	}
	if c.PersonaCount <= 0 {
		return &domain.ConfigError{Field: "persona_count", Reason: "must be > 0"}
	}
	if c.MaxTurns <= 0 {
		return &domain.ConfigError{Field: "max_turns", Reason: "must be > 0"}
	}
	if c.SimConcurrency <= 0 {
		return &domain.ConfigError{Field: "sim_concurrency", Reason: "must be > 0"}
	}
	if c.ImprovementPatience <= 0 {
		return &domain.ConfigError{Field: "improvement_patience", Reason: "must be > 0"}
	}
	if c.FailureTolerance <= 0 {
		return &domain.ConfigError{Field: "failure_tolerance", Reason: "must be > 0"}
	}
	if c.RegressionTolerance < 0 || c.RegressionTolerance > 1 {
		return &domain.ConfigError{Field: "regression_tolerance", Reason: "must be within [0,1]"}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.Weights.Validate()
}

// Controller owns one run of the loop.
type Controller struct {
	personas  PersonaSource
	simulator Simulator
	evaluator Evaluator
	improver  Improver
	cfg       Config
	log       *logrus.Entry

	// Sink receives every completed round; nil disables persistence.
	Sink RoundSink
	// OnRound is invoked after each round with a progress snapshot; nil
	// disables progress events.
	OnRound func(domain.Progress)
}

func New(p PersonaSource, s Simulator, e Evaluator, i Improver, cfg Config, log *logrus.Entry) *Controller {
	return &Controller{personas: p, simulator: s, evaluator: e, improver: i, cfg: cfg, log: log}
}

// Run executes the loop for runID starting from initial (the built-in
// baseline when nil). It returns an error only for invalid configuration or
// an invalid initial script; every runtime outcome, including failure, is
// reported through the FinalResult.
func (c *Controller) Run(ctx context.Context, runID string, initial *domain.Script) (*domain.FinalResult, error) {
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}
	if initial == nil {
		initial = domain.BaselineScript()
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	result := &domain.FinalResult{State: domain.StateInit}
	working := initial
	var best *domain.Round
	bestComposite := 0.0
	stagnant := 0
	failures := 0

	for idx := 0; idx < c.cfg.MaxRounds; idx++ {
		if ctx.Err() != nil {
			c.finish(result, domain.StateExhausted, domain.StopReasonCancelled)
			return result, nil
		}

		round := c.runRound(ctx, runID, idx, working, result)
		result.History = append(result.History, round)
		result.RoundsRun = idx + 1

		if round.Failed {
			failures++
			stagnant++
			c.emit(runID, round, result.State)
			c.persist(ctx, runID, round)
			if failures >= c.cfg.FailureTolerance {
				c.finish(result, domain.StateFailed, domain.StopReasonFailed)
				c.setBest(result, best, initial)
				return result, nil
			}
			continue
		}
		failures = 0

		// Acceptance: the round measured its own script, so the decision is
		// made here against the prior best. Rejection reverts the working
		// script; the best round never regresses.
		if best == nil {
			round.Accepted = true
		} else {
			round.Accepted = acceptCandidate(round.Metrics, best.Metrics, c.cfg.RegressionTolerance)
			if !round.Accepted {
				working = best.Script
			}
		}

		// Only accepted rounds may become the best; a rejected candidate is
		// discarded outright, whatever its composite.
		if comp := round.Composite(c.cfg.Weights); round.Accepted && (best == nil || comp > bestComposite) {
			best = round
			bestComposite = comp
			stagnant = 0
		} else {
			stagnant++
		}

		c.emit(runID, round, result.State)
		c.persist(ctx, runID, round)

		if c.cfg.Thresholds.Met(round.Metrics) {
			c.finish(result, domain.StateConverged, domain.StopReasonConverged)
			c.setBest(result, best, initial)
			return result, nil
		}
		if stagnant >= c.cfg.ImprovementPatience {
			c.finish(result, domain.StateConverged, domain.StopReasonStagnant)
			c.setBest(result, best, initial)
			return result, nil
		}

		if idx+1 < c.cfg.MaxRounds {
			result.State = domain.StateImproving
			candidate, err := c.improver.Improve(ctx, working, round.Feedback, round.Metrics)
			if err != nil {
				c.log.WithError(err).WithField("round", idx).Warn("improvement failed, keeping working script")
				failures++
				if failures >= c.cfg.FailureTolerance {
					c.finish(result, domain.StateFailed, domain.StopReasonFailed)
					c.setBest(result, best, initial)
					return result, nil
				}
			} else {
				working = candidate
			}
		}
	}

	c.finish(result, domain.StateExhausted, domain.StopReasonExhausted)
	c.setBest(result, best, initial)
	return result, nil
}

// runRound executes one generate-simulate-evaluate pass. Failures are
// recorded on the round, not returned.
func (c *Controller) runRound(ctx context.Context, runID string, idx int, script *domain.Script, result *domain.FinalResult) *domain.Round {
	round := &domain.Round{Index: idx, Script: script, StartedAt: time.Now().UTC()}
	defer func() { round.EndedAt = time.Now().UTC() }()

	log := c.log.WithFields(logrus.Fields{"run_id": runID, "round": idx, "script_version": script.Version})

	result.State = domain.StateGeneratingPersonas
	round.Personas = c.personas.Generate(ctx, c.cfg.PersonaCount)

	result.State = domain.StateSimulating
	round.Transcripts = c.simulateBatch(ctx, script, round.Personas, log)
	if len(round.Transcripts) == 0 {
		err := &domain.EmptyBatchError{RoundIndex: idx, Attempted: len(round.Personas)}
		log.WithError(err).Warn("round failed")
		round.Failed = true
		round.Error = err.Error()
		return round
	}

	result.State = domain.StateEvaluating
	metrics, err := c.evaluator.Evaluate(ctx, round.Transcripts)
	if err != nil {
		log.WithError(err).Warn("evaluation failed")
		round.Failed = true
		round.Error = err.Error()
		return round
	}
	round.Metrics = metrics
	round.Feedback = c.evaluator.Analyze(ctx, round.Transcripts, metrics, c.cfg.Thresholds)

	log.WithFields(logrus.Fields{
		"repetition":  metrics.RepetitionRate,
		"negotiation": metrics.NegotiationEffectiveness,
		"resolution":  metrics.ResolutionRate,
		"compliance":  metrics.ComplianceScore,
	}).Info("round evaluated")
	return round
}

// simulateBatch fans the batch out over a bounded worker pool. Individual
// simulation failures are dropped; order follows the persona batch.
func (c *Controller) simulateBatch(ctx context.Context, script *domain.Script, personas []domain.Persona, log *logrus.Entry) []*domain.Transcript {
	results := make([]*domain.Transcript, len(personas))
	sem := make(chan struct{}, c.cfg.SimConcurrency)
	var wg sync.WaitGroup

	for i, p := range personas {
		wg.Add(1)
		go func(i int, p domain.Persona) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			tr, err := c.simulator.Simulate(ctx, script, p, c.cfg.MaxTurns)
			if err != nil {
				log.WithError(err).WithField("persona_id", p.ID).Warn("simulation failed")
				return
			}
			results[i] = tr
		}(i, p)
	}
	wg.Wait()

	out := make([]*domain.Transcript, 0, len(results))
	for _, tr := range results {
		if tr != nil {
			out = append(out, tr)
		}
	}
	return out
}

// acceptCandidate decides whether this round's metrics beat the prior best:
// strictly better on at least one thresholded metric, with no other metric
// regressing by more than the tolerance.
func acceptCandidate(cand, best domain.Metrics, tolerance float64) bool {
	improved := cand.RepetitionRate < best.RepetitionRate ||
		cand.NegotiationEffectiveness > best.NegotiationEffectiveness ||
		cand.ResolutionRate > best.ResolutionRate ||
		cand.ComplianceScore > best.ComplianceScore
	if !improved {
		return false
	}
	if cand.RepetitionRate > best.RepetitionRate+tolerance {
		return false
	}
	if cand.NegotiationEffectiveness < best.NegotiationEffectiveness-tolerance {
		return false
	}
	if cand.ResolutionRate < best.ResolutionRate-tolerance {
		return false
	}
	if cand.ComplianceScore < best.ComplianceScore-tolerance {
		return false
	}
	return true
}

func (c *Controller) finish(result *domain.FinalResult, state domain.State, reason domain.StopReason) {
	result.State = state
	result.StopReason = reason
}

// setBest fills the result's best script and metrics. Runs that never
// completed a round fall back to the initial script.
func (c *Controller) setBest(result *domain.FinalResult, best *domain.Round, initial *domain.Script) {
	if best != nil {
		result.BestScript = best.Script
		m := best.Metrics
		result.BestMetrics = &m
		return
	}
	result.BestScript = initial
}

func (c *Controller) emit(runID string, round *domain.Round, state domain.State) {
	if c.OnRound == nil {
		return
	}
	c.OnRound(domain.Progress{
		RunID:      runID,
		RoundIndex: round.Index,
		Metrics:    round.Metrics,
		Accepted:   round.Accepted,
		Failed:     round.Failed,
		State:      state,
	})
}

func (c *Controller) persist(ctx context.Context, runID string, round *domain.Round) {
	if c.Sink == nil {
		return
	}
	if err := c.Sink.SaveRound(ctx, runID, round); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"run_id": runID, "round": round.Index}).Error("failed to persist round")
	}
}
