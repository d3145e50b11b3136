// Package ai issues chat-completion requests and turns numbered-list answers into structured items.
package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
)

// Priorities assigned by position in a parsed answer.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const unavailableMsg = "AI service is not available"

// Completer runs one blocking chat completion. An empty model selects the provider default.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Item is one entry of a parsed numbered list.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Request holds the optional knobs of a suggestion request.
type Request struct {
	Language string `json:"language"`
	Model    string `json:"model"`
}

// Service builds prompts and parses completions. A nil completer means AI is not configured.
type Service struct {
	completer Completer
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Available reports whether a completion provider is configured.
func (svc *Service) Available() bool {
	return svc != nil && svc.completer != nil
}

// GoalSuggestions asks for 3 actionable suggestions for a goal.
func (svc *Service) GoalSuggestions(ctx context.Context, title, description string, req Request) ([]Item, error) {
	return svc.generate(ctx, GoalPrompt(title, description, req.Language), req.Model)
}

// StudyPlan asks for a 3 step study plan for an exam.
func (svc *Service) StudyPlan(ctx context.Context, title, summary string, req Request) ([]Item, error) {
	return svc.generate(ctx, StudyPlanPrompt(title, summary, req.Language), req.Model)
}

func (svc *Service) generate(ctx context.Context, prompt, model string) ([]Item, error) {
	if !svc.Available() {
		return nil, core.NewUnavailableError(unavailableMsg)
	}
	text, err := svc.completer.Complete(ctx, prompt, strings.TrimSpace(model))
	if err != nil {
		if _, ok := errors.Cause(err).(*core.UnavailableError); ok {
			return nil, err
		}
		return nil, core.NewProviderError("failed to generate AI response", err)
	}
	return ParseSuggestions(text), nil
}
