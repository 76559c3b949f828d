package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/imyme/imyme-ai/internal/backoff"
)

var (
	ErrInvalidConfig    = errors.New("invalid generator config")
	ErrInvalidResponse  = errors.New("invalid model response")
	ErrContentBlocked   = errors.New("content blocked by safety filters")
	ErrTransientFailure = errors.New("model call failed after retries")
)

// Generator produces a JSON document for a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type GeminiOptions struct {
	APIKey     string
	Model      string
	MaxRetries int
	Policy     backoff.Policy
	RetryBase  time.Duration
	RetryMax   time.Duration
	Logger     *slog.Logger
}

type callFunc func(ctx context.Context, prompt string) (string, error)

type GeminiGenerator struct {
	model      string
	maxRetries int
	policy     backoff.Policy
	base       time.Duration
	max        time.Duration
	logger     *slog.Logger
	call       callFunc
	sleep      func(ctx context.Context, d time.Duration) error

	// rng is shared by concurrent scoring and feedback calls
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewGeminiGenerator(ctx context.Context, opts GeminiOptions) (*GeminiGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", ErrInvalidConfig, err)
	}
	g := newGenerator(opts, nil)
	g.call = func(ctx context.Context, prompt string) (string, error) {
		return generateOnce(ctx, client, opts.Model, prompt)
	}
	return g, nil
}

func newGenerator(opts GeminiOptions, call callFunc) *GeminiGenerator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &GeminiGenerator{
		model:      opts.Model,
		maxRetries: retries,
		policy:     opts.Policy,
		base:       opts.RetryBase,
		max:        opts.RetryMax,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		call:       call,
		sleep:      sleepOrDone,
	}
}

func generateOnce(ctx context.Context, client *genai.Client, model, prompt string) (string, error) {
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: empty text", ErrInvalidResponse)
	}
	return sb.String(), nil
}

// GenerateJSON calls the model, retrying transport-level failures with backoff.
// Malformed or blocked responses are returned immediately.
func (g *GeminiGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", ErrInvalidConfig)
	}
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		text, err := g.call(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrContentBlocked) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
		if attempt == g.maxRetries {
			break
		}
		delay := g.retryDelay(attempt)
		g.logger.WarnContext(ctx, "gemini call failed, retrying",
			"model", g.model,
			"attempt", attempt+1,
			"delay", delay.String(),
			"err", err)
		if err := g.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
	return "", fmt.Errorf("%w (%d attempts): %v", ErrTransientFailure, g.maxRetries+1, lastErr)
}

func (g *GeminiGenerator) retryDelay(attempt int) time.Duration {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return backoff.Delay(g.policy, g.base, g.max, attempt, g.rng)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
