package domain

import "time"

// Run is a stored tuning run: lifecycle status plus, once finished, the
// outcome summary. Round details hang off it by run id.
type Run struct {
	ID         string     `json:"run_id"`
	Status     RunStatus  `json:"status"`
	State      State      `json:"state,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	RoundsRun  int        `json:"rounds_run"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
