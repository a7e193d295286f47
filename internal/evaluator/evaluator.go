// Package evaluator scores batches of simulated conversations against the
// collection-call quality metrics.
package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/internal/domain"
	"github.com/voicelab/scriptloop/policy"
)

// repetitionThreshold is the word-overlap similarity above which two agent
// phrases count as a repeat.
const repetitionThreshold = 0.7

// complianceDeduction is subtracted from a transcript's compliance score for
// each policy violation.
const complianceDeduction = 0.2

// negotiationElements groups the phrasing patterns a well-negotiated call is
// expected to contain. Each group present contributes equally to the score.
var negotiationElements = map[string][]*regexp.Regexp{
	"offers_options": compileAll(
		`(option|plan|alternative) [123]`,
		`(several|multiple|different) options`,
		`(could|can|might) (offer|provide|suggest)`,
	),
	"acknowledges_concerns": compileAll(
		`(understand|appreciate|recognize) (your|the) (concern|situation|difficulty)`,
		`(sorry|apologize) to hear`,
		`(must be|sounds) (difficult|challenging|tough)`,
		`thank you for (explaining|sharing)`,
	),
	"provides_alternatives": compileAll(
		`(another|different|alternative) (option|approach|plan)`,
		`(instead|alternatively)`,
		`(we could|we can|let's) (try|consider)`,
	),
	"explains_benefits": compileAll(
		`(benefit|advantage|help) (you|your)`,
		`(this way|this will|this means)`,
		`(allow you to|enable you to|help you)`,
	),
	"closes_agreement": compileAll(
		`(do we have|have we reached) (an agreement|a deal)`,
		`(does that|is this) (work|acceptable|agreeable)`,
		`(shall we|should we) (proceed|move forward)`,
		`(confirm|agree to) (the|this) (plan|arrangement|payment)`,
	),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// Evaluator computes batch metrics from transcripts. Compliance is delegated
// to the policy engine so the rules stay editable without a rebuild.
type Evaluator struct {
	policy *policy.Engine
	log    *logrus.Entry
}

func New(engine *policy.Engine, log *logrus.Entry) *Evaluator {
	return &Evaluator{policy: engine, log: log}
}

// Evaluate averages per-transcript scores across the batch. An empty batch
// yields zero metrics; callers decide whether that is an error.
func (e *Evaluator) Evaluate(ctx context.Context, transcripts []*domain.Transcript) (domain.Metrics, error) {
	var m domain.Metrics
	if len(transcripts) == 0 {
		return m, nil
	}

	resolved := 0
	for _, tr := range transcripts {
		m.RepetitionRate += repetitionRate(tr)
		m.NegotiationEffectiveness += negotiationEffectiveness(tr)
		if tr.Outcome == domain.OutcomeResolved {
			resolved++
		}

		score, err := e.complianceScore(ctx, tr)
		if err != nil {
			return domain.Metrics{}, fmt.Errorf("evaluate compliance for %s: %w", tr.ID, err)
		}
		m.ComplianceScore += score
	}

	n := float64(len(transcripts))
	m.RepetitionRate /= n
	m.NegotiationEffectiveness /= n
	m.ComplianceScore /= n
	m.ResolutionRate = float64(resolved) / n

	e.log.WithFields(logrus.Fields{
		"transcripts": len(transcripts),
		"repetition":  m.RepetitionRate,
		"negotiation": m.NegotiationEffectiveness,
		"resolution":  m.ResolutionRate,
		"compliance":  m.ComplianceScore,
	}).Debug("batch evaluated")

	return m, nil
}

// repetitionRate is the fraction of significant agent phrases that restate an
// earlier phrase from the same conversation.
func repetitionRate(tr *domain.Transcript) float64 {
	agent := tr.AgentTurns()
	if len(agent) <= 1 {
		return 0
	}

	var seen []string
	repeats := 0
	for _, turn := range agent {
		for _, phrase := range significantPhrases(turn.Text) {
			for _, prior := range seen {
				if phraseSimilarity(phrase, prior) > repetitionThreshold {
					repeats++
					break
				}
			}
			seen = append(seen, phrase)
		}
	}
	if len(seen) == 0 {
		return 0
	}
	rate := float64(repeats) / float64(len(seen))
	if rate > 1 {
		rate = 1
	}
	return rate
}

// negotiationEffectiveness is the fraction of negotiation elements the agent
// exhibits. Conversations too short to judge score a neutral 0.5.
func negotiationEffectiveness(tr *domain.Transcript) float64 {
	agent := tr.AgentTurns()
	if len(agent) < 3 || len(tr.CustomerTurns()) < 2 {
		return 0.5
	}

	present := 0
	for _, patterns := range negotiationElements {
		for _, re := range patterns {
			if matchesAny(re, agent) {
				present++
				break
			}
		}
	}
	return float64(present) / float64(len(negotiationElements))
}

func matchesAny(re *regexp.Regexp, turns []domain.Turn) bool {
	for _, t := range turns {
		if re.MatchString(strings.ToLower(t.Text)) {
			return true
		}
	}
	return false
}

// complianceViolations checks the joined agent side of a transcript against
// the policy engine.
func (e *Evaluator) complianceViolations(ctx context.Context, tr *domain.Transcript) ([]string, error) {
	agent := tr.AgentTurns()
	if len(agent) == 0 {
		return nil, nil
	}

	texts := make([]string, len(agent))
	for i, t := range agent {
		texts[i] = t.Text
	}
	return e.policy.Check(ctx, strings.Join(texts, " "))
}

// complianceScore scores one transcript. Every violation, whether a missing
// required element or a forbidden phrase, costs a fixed deduction.
func (e *Evaluator) complianceScore(ctx context.Context, tr *domain.Transcript) (float64, error) {
	if len(tr.AgentTurns()) == 0 {
		return 0, nil
	}
	violations, err := e.complianceViolations(ctx, tr)
	if err != nil {
		return 0, err
	}

	score := 1 - complianceDeduction*float64(len(violations))
	if score < 0 {
		score = 0
	}
	return score, nil
}
