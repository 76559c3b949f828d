package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/providers"
	"github.com/imyme/imyme-ai/pkg/domain"
)

type FeedbackService interface {
	Generate(ctx context.Context, userText string, criteria map[string]any, history []map[string]any) (domain.Feedback, error)
}

type feedbackService struct {
	gen     providers.Generator
	prompts *PromptManager
	persona string
	logger  *slog.Logger
}

// NewFeedbackService builds the feedback generator. persona pins a strategy;
// empty means a random persona per call.
func NewFeedbackService(gen providers.Generator, prompts *PromptManager, persona string, logger *slog.Logger) FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &feedbackService{gen: gen, prompts: prompts, persona: persona, logger: logger}
}

type feedbackResponse struct {
	Summarize     string      `json:"summarize"`
	Keyword       keywordList `json:"keyword"`
	Facts         string      `json:"facts"`
	Understanding string      `json:"understanding"`
	Personalized  string      `json:"personalized"`
}

func (s *feedbackService) Generate(ctx context.Context, userText string, criteria map[string]any, history []map[string]any) (domain.Feedback, error) {
	if s.gen == nil {
		metrics.LLMCallsTotal.WithLabelValues("feedback", "unconfigured").Inc()
		return domain.Feedback{}, fmt.Errorf("feedback: model not configured")
	}
	prompt, persona, err := s.prompts.FeedbackPrompt(criteria, userText, history, s.persona)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("feedback prompt: %w", err)
	}
	s.logger.InfoContext(ctx, "feedback persona selected", "persona", persona)

	raw, err := s.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("feedback", "error").Inc()
		s.logger.ErrorContext(ctx, "feedback generation failed", "err", err)
		return domain.Feedback{}, fmt.Errorf("feedback: %w", err)
	}
	var resp feedbackResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		metrics.LLMCallsTotal.WithLabelValues("feedback", "invalid").Inc()
		return domain.Feedback{}, fmt.Errorf("feedback: %w", err)
	}
	metrics.LLMCallsTotal.WithLabelValues("feedback", "success").Inc()

	kw := []string(resp.Keyword)
	if kw == nil {
		kw = []string{}
	}
	return domain.Feedback{
		Summarize:     resp.Summarize,
		Keyword:       kw,
		Facts:         resp.Facts,
		Understanding: resp.Understanding,
		Personalized:  resp.Personalized,
	}, nil
}
