package repository

import (
	"context"
	"testing"
	"time"

	"github.com/voicelab/scriptloop/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedRun(t *testing.T, store *SQLiteStore, id string) *domain.Run {
	t.Helper()
	run := &domain.Run{
		ID:        id,
		Status:    domain.RunStatusRunning,
		State:     domain.StateInit,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func TestRunRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRun(t, store, "run_abc123")

	got, err := store.GetRun(ctx, "run_abc123")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.ID != "run_abc123" || got.Status != domain.RunStatusRunning {
		t.Fatalf("unexpected run: %+v", got)
	}

	if err := store.UpdateRunStatus(ctx, "run_abc123", domain.RunStatusCancelled); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, err = store.GetRun(ctx, "run_abc123")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != domain.RunStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing run, got %+v", got)
	}
}

func TestSaveRoundRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRun(t, store, "run_1")

	script := domain.BaselineScript()
	round := &domain.Round{
		Index:    0,
		Script:   script,
		Personas: []domain.Persona{{ID: "persona_1", Name: "Sarah Mitchell", DebtAmount: 3500}},
		Transcripts: []*domain.Transcript{{
			ID: "call_1", ScriptID: script.ID, ScriptVersion: 1, PersonaID: "persona_1",
			Outcome: domain.OutcomeResolved, EndSectionID: "closing",
			Turns: []domain.Turn{
				{Speaker: domain.SpeakerAgent, Text: "Hello.", SectionID: "introduction"},
				{Speaker: domain.SpeakerCustomer, Text: "Hi."},
			},
		}},
		Metrics:   domain.Metrics{RepetitionRate: 0.1, ResolutionRate: 1},
		Feedback:  domain.Feedback{Issues: []domain.Issue{{Metric: domain.MetricCompliance, Severity: 0.2}}},
		Accepted:  true,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		EndedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveRound(ctx, "run_1", round); err != nil {
		t.Fatalf("failed to save round: %v", err)
	}

	rounds, err := store.ListRounds(ctx, "run_1")
	if err != nil {
		t.Fatalf("failed to list rounds: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(rounds))
	}
	got := rounds[0]
	if !got.Accepted || got.Metrics.ResolutionRate != 1 {
		t.Fatalf("unexpected round: %+v", got)
	}
	if got.Script.EntryID != script.EntryID || len(got.Script.Sections) != len(script.Sections) {
		t.Fatal("script did not survive the roundtrip")
	}
	if len(got.Personas) != 1 || got.Personas[0].Name != "Sarah Mitchell" {
		t.Fatalf("personas did not survive the roundtrip: %+v", got.Personas)
	}
	if len(got.Feedback.Issues) != 1 || got.Feedback.Issues[0].Metric != domain.MetricCompliance {
		t.Fatalf("feedback did not survive the roundtrip: %+v", got.Feedback)
	}

	transcripts, err := store.ListTranscripts(ctx, "run_1", 0)
	if err != nil {
		t.Fatalf("failed to list transcripts: %v", err)
	}
	if len(transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(transcripts))
	}
	tr := transcripts[0]
	if tr.Outcome != domain.OutcomeResolved || tr.EndSectionID != "closing" {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
	if len(tr.Turns) != 2 || tr.Turns[0].SectionID != "introduction" {
		t.Fatalf("turns did not survive the roundtrip: %+v", tr.Turns)
	}
}

func TestCompleteRunStoresBestScript(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRun(t, store, "run_1")

	best := domain.BaselineScript()
	metrics := domain.Metrics{RepetitionRate: 0.1, NegotiationEffectiveness: 0.8, ResolutionRate: 0.7, ComplianceScore: 0.95}
	result := &domain.FinalResult{
		BestScript:  best,
		BestMetrics: &metrics,
		State:       domain.StateConverged,
		StopReason:  domain.StopReasonConverged,
		RoundsRun:   3,
	}
	if err := store.CompleteRun(ctx, "run_1", domain.RunStatusDone, result); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	run, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != domain.RunStatusDone || run.State != domain.StateConverged {
		t.Fatalf("unexpected run after completion: %+v", run)
	}
	if run.StopReason != domain.StopReasonConverged || run.RoundsRun != 3 {
		t.Fatalf("unexpected outcome fields: %+v", run)
	}
	if run.EndedAt == nil {
		t.Fatal("completed run must have ended_at")
	}

	script, gotMetrics, err := store.GetBestScript(ctx, "run_1")
	if err != nil {
		t.Fatalf("failed to get best script: %v", err)
	}
	if script == nil || script.EntryID != best.EntryID {
		t.Fatalf("best script did not survive the roundtrip: %+v", script)
	}
	if gotMetrics == nil || *gotMetrics != metrics {
		t.Fatalf("best metrics did not survive the roundtrip: %+v", gotMetrics)
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRun(t, store, "run_1")
	seedRun(t, store, "run_2")

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	runs, err = store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected limit to apply, got %d runs", len(runs))
	}
}
