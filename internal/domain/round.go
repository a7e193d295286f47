package domain

import "time"

// Round captures one full pass of the loop: the script snapshot it measured,
// the personas and transcripts of its batch, the metrics and feedback derived
// from them, and whether its script was accepted as the new working script.
type Round struct {
	Index       int           `json:"index"`
	Script      *Script       `json:"script"`
	Personas    []Persona     `json:"personas"`
	Transcripts []*Transcript `json:"transcripts"`
	Metrics     Metrics       `json:"metrics"`
	Feedback    Feedback      `json:"feedback"`
	Accepted    bool          `json:"accepted"`
	// Failed rounds produced no usable metrics (empty batch, improver failure
	// carried over). The script is retained from the prior round.
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Composite is the round's scalar quality under w; failed rounds score 0.
func (r *Round) Composite(w Weights) float64 {
	if r.Failed {
		return 0
	}
	return r.Metrics.Composite(w)
}

// FinalResult is what a completed run returns: the best script observed
// across all rounds (never merely the last one), the full append-only
// history, and a human-readable stop reason.
type FinalResult struct {
	BestScript  *Script    `json:"best_script"`
	BestMetrics *Metrics   `json:"best_metrics,omitempty"`
	History     []*Round   `json:"history"`
	State       State      `json:"state"`
	StopReason  StopReason `json:"stop_reason"`
	RoundsRun   int        `json:"rounds_run"`
}

// Progress is the per-round event delivered to the presentation layer.
type Progress struct {
	RunID      string  `json:"run_id"`
	RoundIndex int     `json:"round_index"`
	Metrics    Metrics `json:"metrics"`
	Accepted   bool    `json:"accepted"`
	Failed     bool    `json:"failed,omitempty"`
	State      State   `json:"state"`
}
