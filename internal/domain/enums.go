// Package domain defines the core domain models for the script tuner.
package domain

// State represents the controller's position in the improvement loop.
type State string

const (
	StateInit               State = "INIT"
	StateGeneratingPersonas State = "GENERATING_PERSONAS"
	StateSimulating         State = "SIMULATING"
	StateEvaluating         State = "EVALUATING"
	StateImproving          State = "IMPROVING"
	StateConverged          State = "CONVERGED"
	StateExhausted          State = "EXHAUSTED"
	StateFailed             State = "FAILED"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted || s == StateFailed
}

// StopReason explains why a run ended.
type StopReason string

const (
	StopReasonConverged StopReason = "converged"
	StopReasonStagnant  StopReason = "stagnant"
	StopReasonExhausted StopReason = "exhausted"
	StopReasonCancelled StopReason = "cancelled"
	StopReasonFailed    StopReason = "failed"
)

// RunStatus represents the status of a stored tuning run.
type RunStatus string

const (
	RunStatusCreated   RunStatus = "CREATED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// Speaker tags a transcript turn.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)
