package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voicelab/scriptloop/internal/domain"
)

// RetryGenerator wraps a Generator with capped exponential-backoff retries
// for transient provider errors. Permanent errors surface immediately;
// transient errors never leak past this wrapper unless the retry budget is
// exhausted.
type RetryGenerator struct {
	inner      Generator
	maxRetries uint64
	// initialInterval is shortened in tests.
	initialInterval time.Duration
}

// NewRetryGenerator wraps inner with up to maxRetries retries per call.
func NewRetryGenerator(inner Generator, maxRetries int) *RetryGenerator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryGenerator{
		inner:           inner,
		maxRetries:      uint64(maxRetries),
		initialInterval: 500 * time.Millisecond,
	}
}

var _ Generator = (*RetryGenerator)(nil)

func (g *RetryGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var out string

	operation := func() error {
		text, err := g.inner.Generate(ctx, req)
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = text
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, g.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return out, nil
}
