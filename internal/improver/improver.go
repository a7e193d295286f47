// Package improver rewrites a call script to address the issues the evaluator
// found, preferring model-proposed edits and falling back to deterministic
// rule-based edits when the model cannot produce a structurally valid script.
package improver

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

const improvementPrompt = `You are an expert in optimizing debt collection scripts.

CURRENT SCRIPT:
%s

PERFORMANCE METRICS:
%s

ISSUES TO ADDRESS (most severe first):
%s

Rewrite the script sections that need improvement. Keep the overall structure
and flow; only change what the issues call for. You may add new sections when
an issue cannot be fixed inside the existing ones.

Respond with a JSON object of the form:
{"sections": {"<section_id>": {"name": "...", "content": "...",
"transitions": [{"trigger": "...", "target": "..."}],
"terminal": false, "resolved": false}}}

Only include sections you changed or added. Omit any field you keep unchanged.
Every transition target must name an existing or included section.`

// sectionEdit is one model-proposed change. Nil pointer fields mean the
// original value is kept.
type sectionEdit struct {
	Name        string              `json:"name,omitempty"`
	Content     string              `json:"content,omitempty"`
	Transitions []domain.Transition `json:"transitions,omitempty"`
	Terminal    *bool               `json:"terminal,omitempty"`
	Resolved    *bool               `json:"resolved,omitempty"`
}

type scriptEdit struct {
	Sections map[string]sectionEdit `json:"sections"`
}

// Improver proposes candidate scripts from feedback.
type Improver struct {
	gen llm.Generator
	log *logrus.Entry
}

func New(gen llm.Generator, log *logrus.Entry) *Improver {
	return &Improver{gen: gen, log: log}
}

// Improve returns a new candidate script addressing the feedback. The input
// script is never modified. The model gets two attempts to produce a valid
// candidate, the second with the first attempt's validation errors included;
// after that the deterministic rule-based edits are applied instead. The
// returned script always passes structural validation.
func (im *Improver) Improve(ctx context.Context, script *domain.Script, fb domain.Feedback, m domain.Metrics) (*domain.Script, error) {
	candidate, err := im.improveWithModel(ctx, script, fb, m)
	if err == nil {
		return candidate, nil
	}
	im.log.WithError(err).Warn("model improvement failed, applying rule-based edits")

	candidate = newCandidate(script)
	applyRuleBasedEdits(candidate, fb)
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("rule-based improvement produced invalid script: %w", err)
	}
	return candidate, nil
}

func (im *Improver) improveWithModel(ctx context.Context, script *domain.Script, fb domain.Feedback, m domain.Metrics) (*domain.Script, error) {
	prompt, err := buildPrompt(script, fb, m)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		p := prompt
		if lastErr != nil {
			p += "\n\nYour previous answer was rejected: " + lastErr.Error() +
				"\nFix these problems and answer again."
		}

		raw, err := im.gen.Generate(ctx, llm.GenerateRequest{
			Op:           "script_improvement",
			System:       "You optimize debt collection scripts based on conversation analysis.",
			Prompt:       p,
			Temperature:  0.3,
			JSONResponse: true,
		})
		if err != nil {
			return nil, fmt.Errorf("improve script: %w", err)
		}

		candidate, err := applyResponse(script, raw)
		if err != nil {
			lastErr = err
			continue
		}
		return candidate, nil
	}
	return nil, lastErr
}

func buildPrompt(script *domain.Script, fb domain.Feedback, m domain.Metrics) (string, error) {
	scriptJSON, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal script: %w", err)
	}
	metricsJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	var issues strings.Builder
	for i, issue := range fb.Issues {
		fmt.Fprintf(&issues, "%d. [%s] %s", i+1, issue.Metric, issue.Description)
		if issue.SectionHint != "" {
			fmt.Fprintf(&issues, " (section: %s)", issue.SectionHint)
		}
		issues.WriteString("\n")
	}

	return fmt.Sprintf(improvementPrompt, scriptJSON, metricsJSON, issues.String()), nil
}

// applyResponse parses the model output, applies the edits to a fresh
// candidate and validates the result.
func applyResponse(script *domain.Script, raw string) (*domain.Script, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var edit scriptEdit
	if err := json.Unmarshal([]byte(payload), &edit); err != nil {
		return nil, fmt.Errorf("parse improvement response: %w", err)
	}

	candidate := newCandidate(script)
	for id, se := range edit.Sections {
		sec, exists := candidate.Sections[id]
		if !exists {
			sec = domain.Section{ID: id, Name: titleFromID(id)}
			// New sections with no declared flow rejoin at confirmation,
			// matching the authoring convention of the baseline script.
			if se.Transitions == nil && !boolOr(se.Terminal, false) {
				if _, ok := candidate.Sections["confirmation"]; ok {
					sec.Transitions = []domain.Transition{{Target: "confirmation"}}
				}
			}
		}
		if se.Name != "" {
			sec.Name = se.Name
		}
		if se.Content != "" {
			sec.Content = se.Content
		}
		if se.Transitions != nil {
			sec.Transitions = se.Transitions
		}
		sec.Terminal = boolOr(se.Terminal, sec.Terminal)
		sec.Resolved = boolOr(se.Resolved, sec.Resolved)
		candidate.Sections[id] = sec
	}

	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	return candidate, nil
}

// newCandidate clones the script under a fresh id and bumped version.
func newCandidate(script *domain.Script) *domain.Script {
	candidate := script.Clone()
	candidate.ID = "script_" + uuid.NewString()[:8]
	candidate.Version = script.Version + 1
	return candidate
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func titleFromID(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// extractJSON returns the outermost JSON object in s, tolerating code fences
// and prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
