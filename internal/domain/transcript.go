package domain

import "time"

// Turn is a single utterance in a simulated call. SectionID is set only for
// agent turns (the section active when the agent spoke).
type Turn struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	SectionID string  `json:"section_id,omitempty"`
}

// Outcome classifies how a simulated conversation ended.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"   // reached a resolved terminal section
	OutcomeUnresolved Outcome = "unresolved" // ended without resolution
	OutcomeTruncated  Outcome = "truncated"  // cut short by a provider failure
)

// Transcript is the ordered turn sequence produced by one simulated
// conversation. Immutable once produced.
type Transcript struct {
	ID            string    `json:"id"`
	ScriptID      string    `json:"script_id"`
	ScriptVersion int       `json:"script_version"`
	PersonaID     string    `json:"persona_id"`
	Turns         []Turn    `json:"turns"`
	Outcome       Outcome   `json:"outcome"`
	EndSectionID  string    `json:"end_section_id,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

// AgentTurns returns the agent-side turns in order.
func (t *Transcript) AgentTurns() []Turn {
	var out []Turn
	for _, turn := range t.Turns {
		if turn.Speaker == SpeakerAgent {
			out = append(out, turn)
		}
	}
	return out
}

// CustomerTurns returns the customer-side turns in order.
func (t *Transcript) CustomerTurns() []Turn {
	var out []Turn
	for _, turn := range t.Turns {
		if turn.Speaker == SpeakerCustomer {
			out = append(out, turn)
		}
	}
	return out
}
