package improver

import (
	"strings"

	"github.com/voicelab/scriptloop/internal/domain"
)

// severeSeverity is the violation magnitude above which an issue warrants a
// new script section rather than just reworded content.
const severeSeverity = 0.3

// requiredDisclosures maps a compliance marker to the sentence appended when
// the introduction lacks it.
var requiredDisclosures = []struct {
	marker   string
	sentence string
}{
	{"my name is", "Hello, my name is [Agent Name]."},
	{"calling from", "I'm calling from [Company Name], a debt collection agency."},
	{"recorded", "Please note that this call is being recorded for quality assurance and compliance purposes."},
	{"verify", "Before we continue, I need to verify your identity."},
	{"regarding your", "I'm calling regarding your loan account ending in [Last 4 Digits]. The purpose of this call is to discuss options for bringing your account current."},
}

// applyRuleBasedEdits mutates the candidate with deterministic fixes for each
// issue. Content edits only touch the hinted section when it exists; severe
// negotiation and resolution issues add dedicated sections wired into the
// existing flow.
func applyRuleBasedEdits(candidate *domain.Script, fb domain.Feedback) {
	for _, issue := range fb.Issues {
		switch issue.Metric {
		case domain.MetricRepetition:
			appendToSection(candidate, issue.SectionHint,
				"Let me outline your options clearly so we can find the best solution for your situation.")

		case domain.MetricNegotiation:
			appendToSection(candidate, issue.SectionHint,
				"Whichever option you choose, our goal is to help you resolve this in a way that works "+
					"for your financial situation. Each of these plans would help you avoid additional fees "+
					"and rebuild your credit over time.")
			if issue.Severity >= severeSeverity {
				addAlternativePaymentSection(candidate)
			}

		case domain.MetricResolution:
			appendToSection(candidate, issue.SectionHint,
				"Can you confirm that this plan works for you? Once you confirm, I'll mark the agreement "+
					"in our system and send your confirmation email right away.")
			if issue.Severity >= severeSeverity {
				addObjectionHandlingSection(candidate)
			}

		case domain.MetricCompliance:
			fixCompliance(candidate, issue.SectionHint)
		}
	}
}

func appendToSection(script *domain.Script, id, text string) {
	sec, ok := script.Sections[id]
	if !ok {
		return
	}
	sec.Content = strings.TrimRight(sec.Content, " \n") + "\n\n" + text
	script.Sections[id] = sec
}

// fixCompliance prefixes the hinted section with every required disclosure it
// is missing.
func fixCompliance(script *domain.Script, id string) {
	sec, ok := script.Sections[id]
	if !ok {
		return
	}
	lower := strings.ToLower(sec.Content)

	var missing []string
	for _, d := range requiredDisclosures {
		if !strings.Contains(lower, d.marker) {
			missing = append(missing, d.sentence)
		}
	}
	if len(missing) == 0 {
		return
	}
	sec.Content = strings.Join(missing, " ") + " " + sec.Content
	script.Sections[id] = sec
}

func addAlternativePaymentSection(script *domain.Script) {
	const id = "alternative_payment_options"
	if _, exists := script.Sections[id]; exists {
		return
	}
	if _, ok := script.Sections["confirmation"]; !ok {
		return
	}

	script.Sections[id] = domain.Section{
		ID:   id,
		Name: "Alternative Payment Options",
		Content: "Let me share some additional payment options that might work better for your situation. " +
			"Option 1: reduced monthly payments over a longer term. Option 2: interest-only payments for a " +
			"limited time. Option 3: a one-time settlement amount. Which of these might work better for you?",
		Transitions: []domain.Transition{{Target: "confirmation"}},
	}
	insertTransition(script, "payment_plan", domain.Transition{Trigger: "other option", Target: id})
	insertTransition(script, "payment_discussion", domain.Transition{Trigger: "other option", Target: id})
}

func addObjectionHandlingSection(script *domain.Script) {
	const id = "objection_handling"
	if _, exists := script.Sections[id]; exists {
		return
	}
	if _, ok := script.Sections["confirmation"]; !ok {
		return
	}

	script.Sections[id] = domain.Section{
		ID:   id,
		Name: "Objection Handling",
		Content: "I understand your concerns, and many customers have similar questions. Let me address " +
			"that directly so we can find a way forward. Does that help clarify the situation?",
		Transitions: []domain.Transition{{Target: "confirmation"}},
	}
	insertTransition(script, "payment_discussion", domain.Transition{Trigger: "concern", Target: id})
	insertTransition(script, "hardship_options", domain.Transition{Trigger: "concern", Target: id})
}

// insertTransition places tr ahead of the section's catch-all so it can
// actually fire.
func insertTransition(script *domain.Script, sectionID string, tr domain.Transition) {
	sec, ok := script.Sections[sectionID]
	if !ok {
		return
	}
	for _, existing := range sec.Transitions {
		if existing.Target == tr.Target && existing.Trigger == tr.Trigger {
			return
		}
	}
	sec.Transitions = append([]domain.Transition{tr}, sec.Transitions...)
	script.Sections[sectionID] = sec
}
