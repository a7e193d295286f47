package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/internal/logger"
)

type stubPersonas struct{}

func (stubPersonas) Generate(ctx context.Context, count int) []domain.Persona {
	out := make([]domain.Persona, count)
	for i := range out {
		out[i] = domain.Persona{ID: fmt.Sprintf("persona_%d", i), Name: "Test Customer", DebtAmount: 1000}
	}
	return out
}

// stubSimulator fails the personas whose index is listed in failIdx.
type stubSimulator struct {
	mu      sync.Mutex
	calls   int
	failIdx map[int]bool
}

func (s *stubSimulator) Simulate(ctx context.Context, script *domain.Script, p domain.Persona, maxTurns int) (*domain.Transcript, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	var idx int
	fmt.Sscanf(p.ID, "persona_%d", &idx)
	if s.failIdx[idx] {
		return nil, domain.NewPermanentError("customer_reply", fmt.Errorf("provider down"))
	}
	return &domain.Transcript{
		ID: "call_" + p.ID, ScriptID: script.ID, ScriptVersion: script.Version,
		PersonaID: p.ID, Outcome: domain.OutcomeResolved,
	}, nil
}

// scriptedEvaluator returns one Metrics value per round, repeating the last.
type scriptedEvaluator struct {
	seq     []domain.Metrics
	round   int
	batches []int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, trs []*domain.Transcript) (domain.Metrics, error) {
	e.batches = append(e.batches, len(trs))
	i := e.round
	if i >= len(e.seq) {
		i = len(e.seq) - 1
	}
	e.round++
	return e.seq[i], nil
}

func (e *scriptedEvaluator) Analyze(ctx context.Context, trs []*domain.Transcript, m domain.Metrics, th domain.Thresholds) domain.Feedback {
	if th.Met(m) {
		return domain.Feedback{}
	}
	return domain.Feedback{Issues: []domain.Issue{{Metric: domain.MetricResolution, Severity: 0.2}}}
}

type stubImprover struct {
	err    error
	inputs []*domain.Script
}

func (im *stubImprover) Improve(ctx context.Context, s *domain.Script, fb domain.Feedback, m domain.Metrics) (*domain.Script, error) {
	im.inputs = append(im.inputs, s)
	if im.err != nil {
		return nil, im.err
	}
	c := s.Clone()
	c.Version = s.Version + 1
	return c, nil
}

type memorySink struct {
	mu     sync.Mutex
	rounds []*domain.Round
}

func (s *memorySink) SaveRound(ctx context.Context, runID string, r *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, r)
	return nil
}

func testConfig() Config {
	return Config{
		MaxRounds:           10,
		PersonaCount:        5,
		MaxTurns:            10,
		SimConcurrency:      3,
		ImprovementPatience: 3,
		FailureTolerance:    2,
		Thresholds: domain.Thresholds{
			MaxRepetitionRate:           0.2,
			MinNegotiationEffectiveness: 0.7,
			MinResolutionRate:           0.5,
			MinComplianceScore:          0.9,
		},
		Weights:             domain.DefaultWeights(),
		RegressionTolerance: 0.05,
	}
}

func passing() domain.Metrics {
	return domain.Metrics{RepetitionRate: 0.1, NegotiationEffectiveness: 0.8, ResolutionRate: 0.8, ComplianceScore: 0.95}
}

func failing() domain.Metrics {
	return domain.Metrics{RepetitionRate: 0.4, NegotiationEffectiveness: 0.5, ResolutionRate: 0.2, ComplianceScore: 0.7}
}

func newController(sim Simulator, eval Evaluator, im Improver, cfg Config) *Controller {
	return New(stubPersonas{}, sim, eval, im, cfg, logger.New().Component("controller"))
}

func TestRunConvergesWhenThresholdsMet(t *testing.T) {
	eval := &scriptedEvaluator{seq: []domain.Metrics{passing()}}
	c := newController(&stubSimulator{}, eval, &stubImprover{}, testConfig())

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateConverged || res.StopReason != domain.StopReasonConverged {
		t.Fatalf("expected converged, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 1 {
		t.Fatalf("expected a single round, got %d", res.RoundsRun)
	}
	if !res.History[0].Accepted {
		t.Fatal("baseline round must be accepted")
	}
	if res.BestScript == nil || res.BestMetrics == nil {
		t.Fatal("converged run must report best script and metrics")
	}
	if *res.BestMetrics != passing() {
		t.Fatalf("unexpected best metrics: %+v", res.BestMetrics)
	}
}

func TestRunZeroRoundsExhaustsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 0
	c := newController(&stubSimulator{}, &scriptedEvaluator{seq: []domain.Metrics{passing()}}, &stubImprover{}, cfg)

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateExhausted || res.StopReason != domain.StopReasonExhausted {
		t.Fatalf("expected exhausted, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 0 || len(res.History) != 0 {
		t.Fatalf("expected no rounds, got %d", res.RoundsRun)
	}
	if res.BestScript == nil {
		t.Fatal("even a zero-round run reports the initial script as best")
	}
}

func TestRunToleratesPartialSimulationFailures(t *testing.T) {
	sim := &stubSimulator{failIdx: map[int]bool{1: true, 3: true}}
	eval := &scriptedEvaluator{seq: []domain.Metrics{passing()}}
	c := newController(sim, eval, &stubImprover{}, testConfig())

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.History[0].Failed {
		t.Fatal("round with surviving transcripts must not fail")
	}
	if eval.batches[0] != 3 {
		t.Fatalf("expected 3 surviving transcripts, got %d", eval.batches[0])
	}
}

func TestRunFailsAfterConsecutiveEmptyBatches(t *testing.T) {
	sim := &stubSimulator{failIdx: map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}}
	c := newController(sim, &scriptedEvaluator{seq: []domain.Metrics{passing()}}, &stubImprover{}, testConfig())

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateFailed || res.StopReason != domain.StopReasonFailed {
		t.Fatalf("expected failed, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 2 {
		t.Fatalf("expected failure after 2 rounds at tolerance 2, got %d", res.RoundsRun)
	}
	for _, r := range res.History {
		if !r.Failed || r.Error == "" {
			t.Fatalf("failed rounds must carry an error: %+v", r)
		}
	}
	if res.BestScript == nil {
		t.Fatal("failed run still reports the initial script")
	}
}

func TestRunStopsOnStagnation(t *testing.T) {
	// Identical sub-threshold metrics every round: the composite never
	// improves after round 0.
	eval := &scriptedEvaluator{seq: []domain.Metrics{failing()}}
	c := newController(&stubSimulator{}, eval, &stubImprover{}, testConfig())

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateConverged || res.StopReason != domain.StopReasonStagnant {
		t.Fatalf("expected stagnant stop, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 4 { // round 0 sets the best, then 3 stagnant rounds
		t.Fatalf("expected 4 rounds at patience 3, got %d", res.RoundsRun)
	}
}

func TestRunRejectsRegressionAndReverts(t *testing.T) {
	better := passing()
	worse := better
	worse.ComplianceScore = 0.7 // regression far past tolerance
	worse.ResolutionRate = 0.9  // even though another metric improved
	better.ResolutionRate = 0.3 // keep round 0 below threshold so the loop continues
	eval := &scriptedEvaluator{seq: []domain.Metrics{better, worse, worse}}
	im := &stubImprover{}
	cfg := testConfig()
	cfg.ImprovementPatience = 2
	c := newController(&stubSimulator{}, eval, im, cfg)

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.History[1].Accepted {
		t.Fatal("regressing candidate must be rejected")
	}
	// After the rejection the improver works from the reverted best script.
	if len(im.inputs) < 2 {
		t.Fatalf("expected at least 2 improvement calls, got %d", len(im.inputs))
	}
	if im.inputs[1].Version != res.History[0].Script.Version {
		t.Fatalf("expected revert to round 0 script, improver got version %d", im.inputs[1].Version)
	}
	if *res.BestMetrics != better {
		t.Fatalf("best metrics must not regress: %+v", res.BestMetrics)
	}
}

func TestRunCancelledBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eval := &scriptedEvaluator{seq: []domain.Metrics{failing()}}
	c := newController(&stubSimulator{}, eval, &stubImprover{}, testConfig())
	c.OnRound = func(p domain.Progress) { cancel() }

	res, err := c.Run(ctx, "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateExhausted || res.StopReason != domain.StopReasonCancelled {
		t.Fatalf("expected cancelled stop, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 1 {
		t.Fatalf("expected cancellation after round 0, got %d rounds", res.RoundsRun)
	}
}

func TestRunCountsImproverFailures(t *testing.T) {
	cfg := testConfig()
	cfg.FailureTolerance = 1
	eval := &scriptedEvaluator{seq: []domain.Metrics{failing()}}
	c := newController(&stubSimulator{}, eval, &stubImprover{err: fmt.Errorf("no candidate")}, cfg)

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != domain.StateFailed || res.StopReason != domain.StopReasonFailed {
		t.Fatalf("expected failed stop, got %s/%s", res.State, res.StopReason)
	}
}

func TestRunPersistsAndEmitsEveryRound(t *testing.T) {
	sink := &memorySink{}
	var events []domain.Progress
	eval := &scriptedEvaluator{seq: []domain.Metrics{failing(), passing()}}
	c := newController(&stubSimulator{}, eval, &stubImprover{}, testConfig())
	c.Sink = sink
	c.OnRound = func(p domain.Progress) { events = append(events, p) }

	res, err := c.Run(context.Background(), "run_1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RoundsRun != 2 {
		t.Fatalf("expected 2 rounds, got %d", res.RoundsRun)
	}
	if len(sink.rounds) != 2 || len(events) != 2 {
		t.Fatalf("expected 2 persisted rounds and 2 events, got %d/%d", len(sink.rounds), len(events))
	}
	if events[0].RunID != "run_1" || events[1].RoundIndex != 1 {
		t.Fatalf("unexpected progress events: %+v", events)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PersonaCount = 0
	c := newController(&stubSimulator{}, &scriptedEvaluator{seq: []domain.Metrics{passing()}}, &stubImprover{}, cfg)

	if _, err := c.Run(context.Background(), "run_1", nil); err == nil {
		t.Fatal("expected config error")
	}
}

func TestAcceptCandidate(t *testing.T) {
	base := domain.Metrics{RepetitionRate: 0.3, NegotiationEffectiveness: 0.6, ResolutionRate: 0.5, ComplianceScore: 0.8}

	improvedWithSmallRegression := base
	improvedWithSmallRegression.ResolutionRate = 0.7
	improvedWithSmallRegression.ComplianceScore = 0.77
	if !acceptCandidate(improvedWithSmallRegression, base, 0.05) {
		t.Fatal("improvement with in-tolerance regression must be accepted")
	}

	bigRegression := improvedWithSmallRegression
	bigRegression.ComplianceScore = 0.6
	if acceptCandidate(bigRegression, base, 0.05) {
		t.Fatal("out-of-tolerance regression must be rejected")
	}

	if acceptCandidate(base, base, 0.05) {
		t.Fatal("identical metrics are not an improvement")
	}

	lessRepetition := base
	lessRepetition.RepetitionRate = 0.2
	if !acceptCandidate(lessRepetition, base, 0.05) {
		t.Fatal("lower repetition alone must be accepted")
	}
}
