package ai

import (
	"context"

	"github.com/elshanq/resume-screener/internal/roles"
)

// Decision is the evaluator's accept/reject call for a candidate.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Verdict is the structured result of evaluating a résumé against a role. A
// verdict always exists after an evaluation attempt: when the model cannot be
// reached or its output cannot be trusted, the evaluator substitutes the
// fail-safe verdict (reject, zero score) instead of returning an error.
type Verdict struct {
	Narrative   string   `json:"narrative" mapstructure:"narrative"`
	Strengths   []string `json:"strengths" mapstructure:"strengths"`
	Weaknesses  []string `json:"weaknesses" mapstructure:"weaknesses"`
	FitScore    int      `json:"fit_score" mapstructure:"fit_score"`
	Decision    Decision `json:"decision" mapstructure:"decision"`
	Suggestions []string `json:"suggestions" mapstructure:"suggestions"`
}

// Accepted reports whether the verdict selects the candidate.
func (v *Verdict) Accepted() bool {
	return v != nil && v.Decision == DecisionAccept
}

// Evaluator scores candidates with a language model. Implementations are
// non-deterministic; callers inject fakes in tests.
type Evaluator interface {
	// Evaluate never fails: model or parse errors yield the fail-safe verdict.
	Evaluate(ctx context.Context, resumeText string, role roles.Role) *Verdict
	// ExtractEmail returns the best-guess candidate e-mail found in the text,
	// or an empty string when none is found.
	ExtractEmail(ctx context.Context, text string) (string, error)
}
