package evaluator

import (
	"context"
	"sort"
	"strings"

	"github.com/voicelab/scriptloop/internal/domain"
)

// evidenceLimit caps how many transcript ids an issue cites.
const evidenceLimit = 3

// Analyze turns a round's metrics and transcripts into ranked improvement
// feedback. Only metrics outside their threshold produce issues; a batch that
// meets every threshold yields empty feedback. Severity is how far the metric
// landed past its bound and the evidence lists the worst-scoring transcripts.
func (e *Evaluator) Analyze(ctx context.Context, transcripts []*domain.Transcript, m domain.Metrics, th domain.Thresholds) domain.Feedback {
	var fb domain.Feedback

	if m.RepetitionRate > th.MaxRepetitionRate {
		worst, freq := worstBy(transcripts, func(tr *domain.Transcript) float64 {
			return repetitionRate(tr)
		}, func(v float64) bool { return v > th.MaxRepetitionRate })
		fb.Issues = append(fb.Issues, domain.Issue{
			Metric:      domain.MetricRepetition,
			Description: "the agent restates the same information across turns; consolidate payment details into single concise statements",
			Severity:    m.RepetitionRate - th.MaxRepetitionRate,
			Frequency:   freq,
			Evidence:    worst,
			SectionHint: "payment_discussion",
		})
	}

	if m.NegotiationEffectiveness < th.MinNegotiationEffectiveness {
		worst, freq := worstBy(transcripts, func(tr *domain.Transcript) float64 {
			return -negotiationEffectiveness(tr)
		}, func(v float64) bool { return -v < th.MinNegotiationEffectiveness })
		fb.Issues = append(fb.Issues, domain.Issue{
			Metric:      domain.MetricNegotiation,
			Description: "calls lack negotiation elements; acknowledge the customer's situation and offer flexible alternatives",
			Severity:    th.MinNegotiationEffectiveness - m.NegotiationEffectiveness,
			Frequency:   freq,
			Evidence:    worst,
			SectionHint: "payment_plan",
		})
	}

	if m.ResolutionRate < th.MinResolutionRate {
		unresolved := 0
		var ids []string
		for _, tr := range transcripts {
			if tr.Outcome != domain.OutcomeResolved {
				unresolved++
				if len(ids) < evidenceLimit {
					ids = append(ids, tr.ID)
				}
			}
		}
		fb.Issues = append(fb.Issues, domain.Issue{
			Metric:      domain.MetricResolution,
			Description: "too many calls end without commitment; strengthen the closing language and ask directly for agreement",
			Severity:    th.MinResolutionRate - m.ResolutionRate,
			Frequency:   unresolved,
			Evidence:    ids,
			SectionHint: "confirmation",
		})
	}

	if m.ComplianceScore < th.MinComplianceScore {
		worst, freq := worstBy(transcripts, func(tr *domain.Transcript) float64 {
			score, err := e.complianceScore(ctx, tr)
			if err != nil {
				return 0
			}
			return -score
		}, func(v float64) bool { return -v < th.MinComplianceScore })
		fb.Issues = append(fb.Issues, domain.Issue{
			Metric:      domain.MetricCompliance,
			Description: e.complianceDescription(ctx, transcripts),
			Severity:    th.MinComplianceScore - m.ComplianceScore,
			Frequency:   freq,
			Evidence:    worst,
			SectionHint: "introduction",
		})
	}

	fb.Rank()
	return fb
}

// complianceDescription names the concrete violations observed across the
// batch so the improver knows exactly what to fix.
func (e *Evaluator) complianceDescription(ctx context.Context, transcripts []*domain.Transcript) string {
	seen := make(map[string]bool)
	var distinct []string
	for _, tr := range transcripts {
		violations, err := e.complianceViolations(ctx, tr)
		if err != nil {
			continue
		}
		for _, v := range violations {
			if !seen[v] {
				seen[v] = true
				distinct = append(distinct, v)
			}
		}
	}
	if len(distinct) == 0 {
		return "required disclosures are missing or prohibited language is used; the introduction must identify the agent, the company, the recording, and the purpose of the call"
	}
	sort.Strings(distinct)
	return "compliance violations observed: " + strings.Join(distinct, "; ")
}

// worstBy scores each transcript, counts how many trip the predicate, and
// returns the ids of the highest-scoring offenders.
func worstBy(transcripts []*domain.Transcript, score func(*domain.Transcript) float64, offends func(float64) bool) ([]string, int) {
	type scored struct {
		id string
		v  float64
	}
	all := make([]scored, 0, len(transcripts))
	freq := 0
	for _, tr := range transcripts {
		v := score(tr)
		if offends(v) {
			freq++
		}
		all = append(all, scored{id: tr.ID, v: v})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].v > all[j].v })

	n := evidenceLimit
	if len(all) < n {
		n = len(all)
	}
	ids := make([]string, 0, n)
	for _, s := range all[:n] {
		ids = append(ids, s.id)
	}
	return ids, freq
}
