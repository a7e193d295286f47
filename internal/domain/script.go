package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Transition routes the conversation to another section when the customer's
// reply contains the trigger keyword (case-insensitive). An empty Trigger
// matches any reply.
type Transition struct {
	Trigger string `json:"trigger"`
	Target  string `json:"target"`
}

// Section is one node of the script graph: what the agent says when the
// section is active, plus ordered outgoing transitions (first match wins).
type Section struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Content     string       `json:"content"`
	Transitions []Transition `json:"transitions"`
	// Terminal sections end the conversation after being spoken.
	Terminal bool `json:"terminal,omitempty"`
	// Resolved marks a terminal section as a successful outcome
	// (payment plan agreed, account settled).
	Resolved bool `json:"resolved,omitempty"`
}

// Script is the agent's conversational policy: an arena of sections referenced
// by id, a designated entry section, and an optional fallback section the
// simulator jumps to when the conversation stalls.
type Script struct {
	ID          string             `json:"id"`
	Version     int                `json:"version"`
	Description string             `json:"description,omitempty"`
	EntryID     string             `json:"entry_id"`
	FallbackID  string             `json:"fallback_id,omitempty"`
	Sections    map[string]Section `json:"sections"`
}

// Section returns the section with the given id.
func (s *Script) Section(id string) (Section, bool) {
	sec, ok := s.Sections[id]
	return sec, ok
}

// SectionIDs returns all section ids in stable order.
func (s *Script) SectionIDs() []string {
	ids := make([]string, 0, len(s.Sections))
	for id := range s.Sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep, independently mutable copy. The improver only ever
// proposes clones; the controller's working script is never edited in place.
func (s *Script) Clone() *Script {
	out := &Script{
		ID:          s.ID,
		Version:     s.Version,
		Description: s.Description,
		EntryID:     s.EntryID,
		FallbackID:  s.FallbackID,
		Sections:    make(map[string]Section, len(s.Sections)),
	}
	for id, sec := range s.Sections {
		cp := sec
		cp.Transitions = append([]Transition(nil), sec.Transitions...)
		out.Sections[id] = cp
	}
	return out
}

// Validate checks the structural invariants of the graph:
//   - the entry section exists,
//   - every transition target resolves to an existing section,
//   - every section is reachable from the entry,
//   - from every section some terminal section is reachable
//     (rules out cycles with no exit).
//
// Returns a *StructuralError listing every violation found.
func (s *Script) Validate() error {
	var issues []string

	if len(s.Sections) == 0 {
		return &StructuralError{ScriptID: s.ID, Issues: []string{"script has no sections"}}
	}
	if _, ok := s.Sections[s.EntryID]; !ok {
		issues = append(issues, fmt.Sprintf("entry section %q does not exist", s.EntryID))
	}
	if s.FallbackID != "" {
		if _, ok := s.Sections[s.FallbackID]; !ok {
			issues = append(issues, fmt.Sprintf("fallback section %q does not exist", s.FallbackID))
		}
	}

	for _, id := range s.SectionIDs() {
		for _, tr := range s.Sections[id].Transitions {
			if _, ok := s.Sections[tr.Target]; !ok {
				issues = append(issues, fmt.Sprintf("section %q has dangling transition target %q", id, tr.Target))
			}
		}
	}

	// Dangling edges make reachability analysis meaningless; report early.
	if len(issues) > 0 {
		return &StructuralError{ScriptID: s.ID, Issues: issues}
	}

	// The fallback section is reachable through the simulator's stall jump
	// even without an explicit transition pointing at it.
	reachable := s.reachableFrom(s.EntryID)
	if s.FallbackID != "" {
		for id := range s.reachableFrom(s.FallbackID) {
			reachable[id] = true
		}
	}
	for _, id := range s.SectionIDs() {
		if !reachable[id] {
			issues = append(issues, fmt.Sprintf("section %q is unreachable from entry %q", id, s.EntryID))
		}
	}

	for _, id := range s.SectionIDs() {
		if !s.canReachTerminal(id) {
			issues = append(issues, fmt.Sprintf("no terminal section reachable from %q (cycle with no exit)", id))
		}
	}

	if len(issues) > 0 {
		return &StructuralError{ScriptID: s.ID, Issues: issues}
	}
	return nil
}

func (s *Script) reachableFrom(start string) map[string]bool {
	seen := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, tr := range s.Sections[id].Transitions {
			if !seen[tr.Target] {
				queue = append(queue, tr.Target)
			}
		}
	}
	return seen
}

func (s *Script) canReachTerminal(start string) bool {
	for id := range s.reachableFrom(start) {
		if s.Sections[id].Terminal {
			return true
		}
	}
	return false
}

// Render binds a section's content against a persona's attributes, replacing
// the script placeholders the authoring convention uses.
func (sec Section) Render(p Persona) string {
	r := strings.NewReplacer(
		"[Agent Name]", "Alex",
		"[Company Name]", "Meridian Recovery Services",
		"[Customer Name]", p.Name,
		"[Last 4 Digits]", "1234",
		"[Amount]", fmt.Sprintf("%.2f", p.DebtAmount),
		"[X]", fmt.Sprintf("%d", p.MonthsBehind),
	)
	return r.Replace(sec.Content)
}
