package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/providers"
	"github.com/imyme/imyme-ai/pkg/domain"
)

type ScoringService interface {
	Score(ctx context.Context, userText string, criteria map[string]any) (domain.ScoreResult, error)
}

type scoringService struct {
	gen     providers.Generator
	prompts *PromptManager
	logger  *slog.Logger
}

func NewScoringService(gen providers.Generator, prompts *PromptManager, logger *slog.Logger) ScoringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &scoringService{gen: gen, prompts: prompts, logger: logger}
}

type scoreResponse struct {
	Score *float64 `json:"score"`
	Level *string  `json:"level"`
}

func (s *scoringService) Score(ctx context.Context, userText string, criteria map[string]any) (domain.ScoreResult, error) {
	if s.gen == nil {
		metrics.LLMCallsTotal.WithLabelValues("score", "unconfigured").Inc()
		return domain.ScoreResult{}, fmt.Errorf("scoring: model not configured")
	}
	prompt, err := s.prompts.ScoringPrompt(criteria, userText)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("scoring prompt: %w", err)
	}
	raw, err := s.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("score", "error").Inc()
		s.logger.ErrorContext(ctx, "scoring failed", "err", err)
		return domain.ScoreResult{}, fmt.Errorf("scoring: %w", err)
	}
	var resp scoreResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		metrics.LLMCallsTotal.WithLabelValues("score", "invalid").Inc()
		return domain.ScoreResult{}, fmt.Errorf("scoring: %w", err)
	}
	metrics.LLMCallsTotal.WithLabelValues("score", "success").Inc()
	return normalizeScore(resp), nil
}

// normalizeScore fills missing fields with score 0 / level C and clamps to 0..100.
func normalizeScore(r scoreResponse) domain.ScoreResult {
	out := domain.ScoreResult{Level: domain.LevelC}
	if r.Score != nil && !math.IsNaN(*r.Score) {
		v := math.Round(*r.Score)
		out.Score = int(math.Max(0, math.Min(100, v)))
	}
	if r.Level != nil {
		out.Level = domain.ParseLevel(*r.Level)
	}
	return out
}
