package controller

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/internal/evaluator"
	"github.com/voicelab/scriptloop/internal/improver"
	"github.com/voicelab/scriptloop/internal/logger"
	"github.com/voicelab/scriptloop/policy"
)

// scriptedCallSimulator produces a resolved one-exchange call that speaks the
// current script's entry section, so evaluation tracks script edits.
type scriptedCallSimulator struct{}

func (scriptedCallSimulator) Simulate(ctx context.Context, script *domain.Script, p domain.Persona, maxTurns int) (*domain.Transcript, error) {
	entry := script.Sections[script.EntryID]
	now := time.Now().UTC()
	return &domain.Transcript{
		ID:            "t_" + p.ID,
		ScriptID:      script.ID,
		ScriptVersion: script.Version,
		PersonaID:     p.ID,
		Turns: []domain.Turn{
			{Speaker: domain.SpeakerAgent, Text: entry.Content, SectionID: entry.ID},
			{Speaker: domain.SpeakerCustomer, Text: "Yes, I agree to the plan. Thank you."},
		},
		Outcome:      domain.OutcomeResolved,
		EndSectionID: entry.ID,
		StartedAt:    now,
		EndedAt:      now,
	}, nil
}

const cleanOpening = "Hello, my name is Alex and I'm calling from Riverside Financial. " +
	"This call is being recorded for quality purposes. Before we continue I need to verify your identity. " +
	"I'm reaching out regarding your loan account to discuss payment options."

// A script whose only section carries every required disclosure plus one
// forbidden phrase should fail compliance on the first round, have the phrase
// cited in feedback, and converge once the next candidate drops it.
func TestRunHealsNonCompliantScript(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}

	initial := &domain.Script{
		ID:      "script_noncompliant",
		Version: 1,
		EntryID: "intro",
		Sections: map[string]domain.Section{
			"intro": {
				ID:       "intro",
				Name:     "Introduction",
				Content:  cleanOpening + " You must pay immediately.",
				Terminal: true,
				Resolved: true,
			},
		},
	}
	if err := initial.Validate(); err != nil {
		t.Fatalf("initial script must be structurally valid: %v", err)
	}

	// The model rewrites the section without the forbidden phrase.
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return `{"sections": {"intro": {"content": ` + jsonQuote(cleanOpening) + `}}}`, nil
	})

	cfg := testConfig()
	cfg.PersonaCount = 3
	// A single agent turn scores neutral on negotiation.
	cfg.Thresholds.MinNegotiationEffectiveness = 0.5

	c := New(
		stubPersonas{},
		scriptedCallSimulator{},
		evaluator.New(engine, logger.New().Component("evaluator")),
		improver.New(gen, logger.New().Component("improver")),
		cfg,
		logger.New().Component("controller"),
	)

	res, err := c.Run(context.Background(), "run_1", initial)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.State != domain.StateConverged || res.StopReason != domain.StopReasonConverged {
		t.Fatalf("expected converged, got %s/%s", res.State, res.StopReason)
	}
	if res.RoundsRun != 2 {
		t.Fatalf("expected convergence at round 1, got %d rounds", res.RoundsRun)
	}

	baseline := res.History[0]
	if baseline.Metrics.ComplianceScore >= 1.0 {
		t.Fatalf("baseline must be non-compliant, got %v", baseline.Metrics.ComplianceScore)
	}
	var cited bool
	for _, issue := range baseline.Feedback.Issues {
		if issue.Metric == domain.MetricCompliance && strings.Contains(issue.Description, "must pay immediately") {
			cited = true
		}
	}
	if !cited {
		t.Fatalf("feedback must cite the forbidden phrase, got %+v", baseline.Feedback.Issues)
	}

	final := res.History[1]
	if final.Metrics.ComplianceScore != 1.0 {
		t.Fatalf("expected full compliance after the fix, got %v", final.Metrics.ComplianceScore)
	}
	if !final.Accepted {
		t.Fatal("the fixed candidate must be accepted")
	}
	if strings.Contains(res.BestScript.Sections["intro"].Content, "must pay immediately") {
		t.Fatal("best script still contains the forbidden phrase")
	}
}

func jsonQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
