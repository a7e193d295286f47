// Package personas generates synthetic customer profiles for simulated calls.
package personas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/domain"
)

const generationPrompt = `Create a realistic persona for a loan defaulter that a debt collection agency would call.

The response MUST be a valid JSON object with EXACTLY these fields:
- name: full name (string)
- age: integer between 18 and 75
- occupation: current job (string)
- monthly_income: float between 1000 and 10000
- debt_amount: float between 1000 and 20000
- months_behind: integer between 1 and 12
- default_reason: one of "job_loss", "medical", "overextended", "dispute", "oversight"
- communication_style: one of "cooperative", "evasive", "aggressive", "anxious", "skeptical"
- negotiation_style: short description (string)
- objections: array of 2-4 strings
- financial_situation: brief description (string)
- willingness_to_pay: float between 0.0 and 1.0

Be creative and realistic, and vary the personas across a batch.`

// Generator produces persona batches from the generation capability, falling
// back to the built-in catalog when generation is unavailable. Generate never
// fails: a round is never lost to persona generation alone.
type Generator struct {
	gen llm.Generator
	log *logrus.Entry
}

// NewGenerator creates a persona generator.
func NewGenerator(gen llm.Generator, log *logrus.Entry) *Generator {
	return &Generator{gen: gen, log: log}
}

// Generate returns count personas. Each generation failure is retried once;
// remaining gaps are filled from the catalog.
func (g *Generator) Generate(ctx context.Context, count int) []domain.Persona {
	out := make([]domain.Persona, 0, count)

	for i := 0; i < count; i++ {
		p, err := g.generateOne(ctx)
		if err != nil {
			g.log.WithError(err).Warn("persona generation failed, retrying once")
			p, err = g.generateOne(ctx)
		}
		if err != nil {
			g.log.WithError(err).Warn("persona generation failed twice, falling back to catalog")
			break
		}
		out = append(out, p)
	}

	if missing := count - len(out); missing > 0 {
		out = append(out, Catalog(missing)...)
	}
	return out
}

func (g *Generator) generateOne(ctx context.Context) (domain.Persona, error) {
	text, err := g.gen.Generate(ctx, llm.GenerateRequest{
		Op:           "persona_generation",
		System:       "You generate diverse, realistic personas of people who have defaulted on loans. Return valid JSON matching the requested format exactly.",
		Prompt:       generationPrompt,
		Temperature:  0.9,
		JSONResponse: true,
	})
	if err != nil {
		return domain.Persona{}, err
	}

	var p domain.Persona
	if err := json.Unmarshal([]byte(extractJSON(text)), &p); err != nil {
		return domain.Persona{}, fmt.Errorf("invalid persona JSON: %w", err)
	}
	p.ID = "persona_" + uuid.New().String()[:8]
	if err := p.Validate(); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

// extractJSON pulls the outermost JSON object out of a response that may be
// wrapped in prose or code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
