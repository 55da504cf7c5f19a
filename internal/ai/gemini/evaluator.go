package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/elshanq/resume-screener/internal/ai"
	"github.com/elshanq/resume-screener/internal/roles"
	"github.com/elshanq/resume-screener/internal/util"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string, opts GenerateOptions) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	systemPrompt = "You are a member of a hiring committee made up of HR and technical specialists. You assess candidates strictly against the stated role requirements."

	evaluateTemperature = 0.5
	evaluateMaxTokens   = 2000
	emailTemperature    = 0.1
	emailMaxTokens      = 100

	defaultMaxLogLength = 200

	fallbackSuggestion = "A technical problem occurred while evaluating your application. Please try again later."
)

// Evaluator implements ai.Evaluator on top of a Gemini content generator.
type Evaluator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewEvaluator(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Evaluate scores the résumé against the role. It is the terminal
// error-absorption point for model calls: any failure, including unparsable or
// untrustworthy output, yields the fail-safe reject verdict and never an error.
func (e *Evaluator) Evaluate(ctx context.Context, resumeText string, role roles.Role) *ai.Verdict {
	prompt := buildPrompt(resumeText, role)

	e.logger.Debug("evaluation request",
		zap.String("role", role.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, systemPrompt, prompt, GenerateOptions{
		Temperature:     evaluateTemperature,
		MaxOutputTokens: evaluateMaxTokens,
	})
	if err != nil {
		e.logger.Warn("evaluation request failed, using fail-safe verdict",
			zap.String("role", role.ID),
			zap.Error(err),
		)
		return FallbackVerdict()
	}

	e.logger.Debug("evaluation response",
		zap.String("role", role.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, e.maxLogLen)),
	)

	verdict, err := parseVerdict(raw)
	if err != nil {
		e.logger.Warn("evaluation response unparsable, using fail-safe verdict",
			zap.String("role", role.ID),
			zap.Error(err),
		)
		return FallbackVerdict()
	}

	return verdict
}

// ExtractEmail asks the model for the single best-guess e-mail address in the
// text. An empty string is returned when the response contains no token with
// an '@'.
func (e *Evaluator) ExtractEmail(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Find the candidate's e-mail address in the text below and return only the address itself, nothing else. Return an empty string when there is none.\n\nText:\n%s",
		text,
	)

	raw, err := e.generator.GenerateContent(ctx, "", prompt, GenerateOptions{
		Temperature:     emailTemperature,
		MaxOutputTokens: emailMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("extract email: %w", err)
	}

	for _, token := range strings.Fields(raw) {
		if strings.Contains(token, "@") {
			return strings.Trim(token, "<>,;:\"'"), nil
		}
	}

	return "", nil
}

// FallbackVerdict is the fail-safe default used whenever the model's response
// cannot be trusted: reject, zero score, one generic retry-later suggestion.
func FallbackVerdict() *ai.Verdict {
	return &ai.Verdict{
		Narrative:   "The evaluation could not be completed.",
		Strengths:   []string{},
		Weaknesses:  []string{},
		FitScore:    0,
		Decision:    ai.DecisionReject,
		Suggestions: []string{fallbackSuggestion},
	}
}

func buildPrompt(resumeText string, role roles.Role) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{ROLE}}", role.Title)
	prompt = strings.ReplaceAll(prompt, "{{ROLE_REQUIREMENTS}}", role.Requirements)
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", resumeText)
	return prompt
}

func parseVerdict(raw string) (*ai.Verdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse evaluation response: %w", err)
	}

	var verdict ai.Verdict
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &verdict,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build verdict decoder: %w", err)
	}

	// WeaklyTypedInput coerces a "85" score string into an int; a non-numeric
	// score fails the decode and routes to the fallback verdict.
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode evaluation response: %w", err)
	}

	verdict.Decision = ai.Decision(strings.ToLower(strings.TrimSpace(string(verdict.Decision))))
	if verdict.Decision != ai.DecisionAccept && verdict.Decision != ai.DecisionReject {
		return nil, fmt.Errorf("unrecognized decision %q", verdict.Decision)
	}

	if verdict.FitScore < 0 {
		verdict.FitScore = 0
	}
	if verdict.FitScore > 100 {
		verdict.FitScore = 100
	}

	if verdict.Strengths == nil {
		verdict.Strengths = []string{}
	}
	if verdict.Weaknesses == nil {
		verdict.Weaknesses = []string{}
	}
	if verdict.Suggestions == nil {
		verdict.Suggestions = []string{}
	}

	return &verdict, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
