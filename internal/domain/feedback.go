package domain

import "sort"

// Issue is one detected weakness: which metric it hurts, how far past the
// threshold it landed, and the worst-offending transcripts as evidence.
type Issue struct {
	Metric      string `json:"metric"`
	Description string `json:"description"`
	// Severity is the threshold violation magnitude in [0,1].
	Severity  float64  `json:"severity"`
	Frequency int      `json:"frequency"` // transcripts exhibiting the issue
	Evidence  []string `json:"evidence"`  // transcript ids
	// SectionHint names the script section most likely responsible, when the
	// analysis can tell.
	SectionHint string `json:"section_hint,omitempty"`
}

// Feedback is the ranked list of issues derived from a round's metrics and
// transcript patterns, ordered by (severity, frequency) descending.
type Feedback struct {
	Issues []Issue `json:"issues"`
}

// Rank sorts issues by severity then frequency, both descending.
func (f *Feedback) Rank() {
	sort.SliceStable(f.Issues, func(i, j int) bool {
		if f.Issues[i].Severity != f.Issues[j].Severity {
			return f.Issues[i].Severity > f.Issues[j].Severity
		}
		return f.Issues[i].Frequency > f.Issues[j].Frequency
	})
}

// Empty reports whether no issues were found.
func (f Feedback) Empty() bool { return len(f.Issues) == 0 }
