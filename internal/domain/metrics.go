package domain

// Metric names used in thresholds, feedback and progress events.
const (
	MetricRepetition  = "repetition_rate"
	MetricNegotiation = "negotiation_effectiveness"
	MetricResolution  = "resolution_rate"
	MetricCompliance  = "compliance_score"
)

// Metrics are the per-round scores, each bounded to [0,1] and aggregated
// across all transcripts in the round's batch.
type Metrics struct {
	RepetitionRate           float64 `json:"repetition_rate"`
	NegotiationEffectiveness float64 `json:"negotiation_effectiveness"`
	ResolutionRate           float64 `json:"resolution_rate"`
	ComplianceScore          float64 `json:"compliance_score"`
}

// Thresholds are the per-metric bounds that must all hold simultaneously for
// a round to count as converged. RepetitionRate is a maximum, the rest are
// minimums.
type Thresholds struct {
	MaxRepetitionRate           float64 `json:"max_repetition_rate"`
	MinNegotiationEffectiveness float64 `json:"min_negotiation_effectiveness"`
	MinResolutionRate           float64 `json:"min_resolution_rate"`
	MinComplianceScore          float64 `json:"min_compliance_score"`
}

// Validate rejects bounds outside [0,1].
func (t Thresholds) Validate() error {
	check := func(field string, v float64) error {
		if v < 0 || v > 1 {
			return &ConfigError{Field: field, Reason: "must be within [0,1]"}
		}
		return nil
	}
	if err := check("max_repetition_rate", t.MaxRepetitionRate); err != nil {
		return err
	}
	if err := check("min_negotiation_effectiveness", t.MinNegotiationEffectiveness); err != nil {
		return err
	}
	if err := check("min_resolution_rate", t.MinResolutionRate); err != nil {
		return err
	}
	return check("min_compliance_score", t.MinComplianceScore)
}

// Met reports whether all four bounds hold for m.
func (t Thresholds) Met(m Metrics) bool {
	return m.RepetitionRate <= t.MaxRepetitionRate &&
		m.NegotiationEffectiveness >= t.MinNegotiationEffectiveness &&
		m.ResolutionRate >= t.MinResolutionRate &&
		m.ComplianceScore >= t.MinComplianceScore
}

// Weights combine the four metrics into the scalar composite used to rank
// scripts across rounds. Repetition contributes inverted (lower is better).
type Weights struct {
	Repetition  float64 `json:"repetition"`
	Negotiation float64 `json:"negotiation"`
	Resolution  float64 `json:"resolution"`
	Compliance  float64 `json:"compliance"`
}

// DefaultWeights weight the four metrics equally.
func DefaultWeights() Weights {
	return Weights{Repetition: 0.25, Negotiation: 0.25, Resolution: 0.25, Compliance: 0.25}
}

// Validate rejects non-positive weight sets.
func (w Weights) Validate() error {
	if w.Repetition < 0 || w.Negotiation < 0 || w.Resolution < 0 || w.Compliance < 0 {
		return &ConfigError{Field: "composite_weights", Reason: "weights must be non-negative"}
	}
	if w.Repetition+w.Negotiation+w.Resolution+w.Compliance <= 0 {
		return &ConfigError{Field: "composite_weights", Reason: "at least one weight must be positive"}
	}
	return nil
}

// Composite folds m into a single score under w.
func (m Metrics) Composite(w Weights) float64 {
	return w.Repetition*(1-m.RepetitionRate) +
		w.Negotiation*m.NegotiationEffectiveness +
		w.Resolution*m.ResolutionRate +
		w.Compliance*m.ComplianceScore
}
