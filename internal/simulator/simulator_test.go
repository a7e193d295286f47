package simulator

import (
	"context"
	"fmt"
	"testing"

	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/internal/logger"
)

func newSim(fn llm.GeneratorFunc) *Simulator {
	return New(fn, logger.New().Component("simulator"))
}

func testPersona() domain.Persona {
	return domain.Persona{
		ID: "persona_test", Name: "Pat Doyle", DebtAmount: 1200, MonthsBehind: 2,
		CommunicationStyle: domain.StyleCooperative,
	}
}

func TestSimulateBaselineWithMockResolves(t *testing.T) {
	sim := New(llm.NewMockGenerator(), logger.New().Component("simulator"))

	tr, err := sim.Simulate(context.Background(), domain.BaselineScript(), testPersona(), 10)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if tr.Outcome != domain.OutcomeResolved {
		t.Fatalf("expected resolved outcome, got %s (end section %s)", tr.Outcome, tr.EndSectionID)
	}
	if tr.EndSectionID != "closing" {
		t.Fatalf("expected to end at closing, got %s", tr.EndSectionID)
	}
	for _, turn := range tr.Turns {
		switch turn.Speaker {
		case domain.SpeakerAgent:
			if turn.SectionID == "" {
				t.Fatal("agent turn missing section id")
			}
		case domain.SpeakerCustomer:
			if turn.SectionID != "" {
				t.Fatal("customer turn carries a section id")
			}
		}
	}
}

func TestSimulateFollowsTriggeredTransition(t *testing.T) {
	script := &domain.Script{
		ID: "s", Version: 1, EntryID: "ask",
		Sections: map[string]domain.Section{
			"ask": {ID: "ask", Content: "Can you pay today?", Transitions: []domain.Transition{
				{Trigger: "hardship", Target: "hardship"},
				{Target: "plan"},
			}},
			"hardship": {ID: "hardship", Content: "We have hardship options.", Terminal: true},
			"plan":     {ID: "plan", Content: "Let's set up a plan.", Terminal: true, Resolved: true},
		},
	}

	sim := newSim(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return "I'm going through financial HARDSHIP right now.", nil
	})

	tr, err := sim.Simulate(context.Background(), script, testPersona(), 5)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if tr.EndSectionID != "hardship" {
		t.Fatalf("expected hardship branch, ended at %s", tr.EndSectionID)
	}
	if tr.Outcome != domain.OutcomeUnresolved {
		t.Fatalf("expected unresolved, got %s", tr.Outcome)
	}
}

func TestSimulateRepeatLimitForcesFallback(t *testing.T) {
	script := &domain.Script{
		ID: "s", Version: 1, EntryID: "ask", FallbackID: "bye",
		Sections: map[string]domain.Section{
			"ask": {ID: "ask", Content: "Will you pay?", Transitions: []domain.Transition{
				{Trigger: "yes", Target: "bye"},
			}},
			"bye": {ID: "bye", Content: "We'll follow up later.", Terminal: true},
		},
	}

	sim := newSim(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return "hmm, maybe", nil
	})

	tr, err := sim.Simulate(context.Background(), script, testPersona(), 10)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	asks := 0
	for _, turn := range tr.Turns {
		if turn.SectionID == "ask" {
			asks++
		}
	}
	if asks != 3 { // initial + RepeatLimit repeats, then the fallback jump
		t.Fatalf("expected section to repeat 3 times before fallback, got %d", asks)
	}
	if tr.EndSectionID != "bye" {
		t.Fatalf("expected to end at fallback, got %s", tr.EndSectionID)
	}
}

func TestSimulateEndSignalStopsConversation(t *testing.T) {
	sim := newSim(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return "Stop calling me, I'm contacting my attorney.", nil
	})

	tr, err := sim.Simulate(context.Background(), domain.BaselineScript(), testPersona(), 10)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(tr.Turns) != 2 {
		t.Fatalf("expected conversation to stop after the first exchange, got %d turns", len(tr.Turns))
	}
	if tr.Outcome != domain.OutcomeUnresolved {
		t.Fatalf("expected unresolved, got %s", tr.Outcome)
	}
}

func TestSimulateTruncatesOnProviderFailure(t *testing.T) {
	calls := 0
	sim := newSim(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		calls++
		return "", domain.NewTransientError(req.Op, fmt.Errorf("provider outage"))
	})

	tr, err := sim.Simulate(context.Background(), domain.BaselineScript(), testPersona(), 10)
	if err != nil {
		t.Fatalf("partial transcripts must not be errors, got %v", err)
	}
	if calls != 2 { // the single turn is retried exactly once
		t.Fatalf("expected 2 provider attempts, got %d", calls)
	}
	if tr.Outcome != domain.OutcomeTruncated {
		t.Fatalf("expected truncated outcome, got %s", tr.Outcome)
	}
	if len(tr.Turns) != 1 || tr.Turns[0].Speaker != domain.SpeakerAgent {
		t.Fatalf("expected a single agent turn, got %+v", tr.Turns)
	}
}

func TestSimulateHonorsMaxTurns(t *testing.T) {
	script := &domain.Script{
		ID: "s", Version: 1, EntryID: "a",
		Sections: map[string]domain.Section{
			"a": {ID: "a", Content: "ping", Transitions: []domain.Transition{{Target: "b"}}},
			"b": {ID: "b", Content: "pong", Transitions: []domain.Transition{{Target: "a"}}},
		},
	}

	sim := newSim(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return "ok", nil
	})

	tr, err := sim.Simulate(context.Background(), script, testPersona(), 3)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	agents := len(tr.AgentTurns())
	if agents != 3 {
		t.Fatalf("expected 3 agent turns under maxTurns=3, got %d", agents)
	}
}
