package llm

import (
	"context"
	"fmt"
	"sync"
)

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// MockGenerator is a deterministic offline Generator used when
// SCRIPTLOOP_MODE=MOCK and throughout the tests. Responses are keyed by the
// request Op so a whole tuning run can execute without a provider.
type MockGenerator struct {
	mu       sync.Mutex
	personas int
}

// NewMockGenerator creates a new mock generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

var _ Generator = (*MockGenerator)(nil)

var mockPersonaSeeds = []struct {
	name, occupation, style string
	age                     int
}{
	{"Jordan Blake", "warehouse supervisor", "cooperative", 34},
	{"Priya Raman", "freelance designer", "anxious", 29},
	{"Marcus Webb", "retired teacher", "skeptical", 67},
	{"Elena Vasquez", "nurse", "evasive", 41},
	{"Tom Kowalski", "delivery driver", "aggressive", 52},
}

func (m *MockGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	switch req.Op {
	case "persona_generation":
		m.mu.Lock()
		seed := mockPersonaSeeds[m.personas%len(mockPersonaSeeds)]
		m.personas++
		m.mu.Unlock()
		return fmt.Sprintf(`{
			"name": %q,
			"age": %d,
			"occupation": %q,
			"monthly_income": 3200,
			"debt_amount": 5400,
			"months_behind": 3,
			"default_reason": "job_loss",
			"communication_style": %q,
			"negotiation_style": "pragmatic",
			"objections": ["I already spoke to someone about this", "The amount seems wrong"],
			"financial_situation": "Living paycheck to paycheck after reduced hours.",
			"willingness_to_pay": 0.6
		}`, seed.name, seed.age, seed.occupation, seed.style), nil

	case "customer_reply":
		// Progress the call deterministically by how far it has gone.
		replies := []string{
			"Yes, this is me. What is this about?",
			"Money has been tight since I lost some hours at work.",
			"A payment plan could work if the amounts are small.",
			"Option 1 works for me.",
			"Yes, I agree to the plan. Thank you for your help.",
			"No, that's everything. Thanks again.",
		}
		idx := 0
		for _, msg := range req.Messages {
			if msg.Role == "assistant" {
				idx++
			}
		}
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		return replies[idx], nil

	case "script_improvement":
		// No structural changes; callers bump the version themselves.
		return `{"sections": {}}`, nil
	}

	return "Understood.", nil
}
