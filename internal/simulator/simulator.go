// Package simulator drives scripted agent / synthetic customer conversations.
package simulator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/domain"
)

// endPhrases are the customer signals that explicitly end a call.
var endPhrases = []string{
	"stop calling",
	"don't call",
	"remove me",
	"hang up",
	"not interested",
	"attorney",
	"lawyer",
	"harassment",
}

// Simulator produces one Transcript per (script, persona) pair. The agent
// side is the rendered section content; the customer side comes from the
// generation capability conditioned on the persona.
type Simulator struct {
	gen llm.Generator
	log *logrus.Entry
	// RepeatLimit caps how often a section may repeat when no transition
	// matches before the conversation is forced to the fallback section.
	RepeatLimit int
}

// New creates a simulator.
func New(gen llm.Generator, log *logrus.Entry) *Simulator {
	return &Simulator{gen: gen, log: log, RepeatLimit: 2}
}

// Simulate runs one conversation for up to maxTurns exchanges. Provider
// failures mid-conversation are retried once per turn and then truncate the
// transcript at the last successful turn; partial transcripts are returned
// without error.
func (s *Simulator) Simulate(ctx context.Context, script *domain.Script, persona domain.Persona, maxTurns int) (*domain.Transcript, error) {
	entry, ok := script.Section(script.EntryID)
	if !ok {
		return nil, &domain.StructuralError{ScriptID: script.ID, Issues: []string{
			fmt.Sprintf("entry section %q does not exist", script.EntryID),
		}}
	}

	tr := &domain.Transcript{
		ID:            "call_" + uuid.New().String()[:8],
		ScriptID:      script.ID,
		ScriptVersion: script.Version,
		PersonaID:     persona.ID,
		Outcome:       domain.OutcomeUnresolved,
		StartedAt:     time.Now(),
	}

	current := entry
	repeats := 0

	for exchange := 0; exchange < maxTurns; exchange++ {
		if err := ctx.Err(); err != nil {
			tr.Outcome = domain.OutcomeTruncated
			break
		}

		tr.Turns = append(tr.Turns, domain.Turn{
			Speaker:   domain.SpeakerAgent,
			Text:      current.Render(persona),
			SectionID: current.ID,
		})
		tr.EndSectionID = current.ID

		if current.Terminal {
			if current.Resolved {
				tr.Outcome = domain.OutcomeResolved
			}
			break
		}

		reply, err := s.customerReply(ctx, persona, tr.Turns)
		if err != nil {
			// One retry for the single turn, then truncate.
			reply, err = s.customerReply(ctx, persona, tr.Turns)
		}
		if err != nil {
			s.log.WithError(err).WithField("persona", persona.ID).
				Warn("customer turn failed after retry, truncating transcript")
			tr.Outcome = domain.OutcomeTruncated
			break
		}

		tr.Turns = append(tr.Turns, domain.Turn{Speaker: domain.SpeakerCustomer, Text: reply})

		if isEndSignal(reply) {
			break
		}

		next, matched := nextSection(current, reply)
		if !matched {
			repeats++
			if repeats > s.RepeatLimit {
				if script.FallbackID == "" {
					break
				}
				fb, _ := script.Section(script.FallbackID)
				current = fb
				repeats = 0
			}
			continue // stay in the current section
		}
		repeats = 0
		sec, ok := script.Section(next)
		if !ok {
			// Validation rules this out for accepted scripts.
			return nil, &domain.StructuralError{ScriptID: script.ID, Issues: []string{
				fmt.Sprintf("transition from %q targets missing section %q", current.ID, next),
			}}
		}
		current = sec
	}

	tr.EndedAt = time.Now()
	return tr, nil
}

// nextSection picks the first transition whose trigger the reply contains.
// An empty trigger matches anything.
func nextSection(sec domain.Section, reply string) (string, bool) {
	lower := strings.ToLower(reply)
	for _, t := range sec.Transitions {
		if t.Trigger == "" || strings.Contains(lower, strings.ToLower(t.Trigger)) {
			return t.Target, true
		}
	}
	return "", false
}

func isEndSignal(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range endPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (s *Simulator) customerReply(ctx context.Context, persona domain.Persona, turns []domain.Turn) (string, error) {
	// The customer model sees agent turns as the user and itself as the
	// assistant.
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := "assistant"
		if t.Speaker == domain.SpeakerAgent {
			role = "user"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}

	return s.gen.Generate(ctx, llm.GenerateRequest{
		Op:          "customer_reply",
		System:      persona.RoleplayPrompt(),
		Messages:    msgs,
		Temperature: 0.8,
		MaxTokens:   150,
	})
}
