package llm

import (
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "SCRIPTLOOP_MODE"
	// ModeMock indicates the offline mock generator should be used.
	ModeMock = "MOCK"
)

// NewGenerator creates the generation capability based on SCRIPTLOOP_MODE.
// MOCK returns the deterministic offline generator; anything else returns the
// real client wrapped with transient-error retries.
func NewGenerator(baseURL, apiKey, model string, timeout time.Duration, maxRetries int) Generator {
	if os.Getenv(EnvMode) == ModeMock {
		return NewMockGenerator()
	}
	return NewRetryGenerator(NewClient(baseURL, apiKey, model, timeout), maxRetries)
}
