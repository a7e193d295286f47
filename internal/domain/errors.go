package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError wraps a failure of the external text-generation capability.
// Transient errors (timeouts, 5xx, rate limits) are retryable; permanent
// errors (auth, bad request, unparseable output after retries) are not.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider error (%s) during %s: %v", kind, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewTransientError builds a retryable provider error.
func NewTransientError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Transient: true, Err: err}
}

// NewPermanentError builds a non-retryable provider error.
func NewPermanentError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable provider error.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// StructuralError reports an invalid script graph: dangling transition
// targets, unreachable sections, or cycles with no exit.
type StructuralError struct {
	ScriptID string
	Issues   []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("script %s is structurally invalid: %s", e.ScriptID, strings.Join(e.Issues, "; "))
}

// IsStructural reports whether err is a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// EmptyBatchError means a round produced zero usable transcripts.
type EmptyBatchError struct {
	RoundIndex int
	Attempted  int
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("round %d produced no usable transcripts (%d simulations attempted)", e.RoundIndex, e.Attempted)
}

// ConfigError reports invalid thresholds or budgets. Fatal before any round.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
