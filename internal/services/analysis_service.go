package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/tracing"
	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
)

const textTooShortMessage = "내용이 너무 짧아 분석할 수 없습니다."

// AnalysisService accepts submissions and runs them detached from the caller.
type AnalysisService interface {
	Submit(ctx context.Context, req domain.AnalysisRequest) (string, error)
	Run(ctx context.Context, taskID string, req domain.AnalysisRequest)
	// Wait blocks until in-flight runs finish or ctx is done.
	Wait(ctx context.Context) error
}

type AnalysisOptions struct {
	MinTextLength int
	MaxConcurrent int
}

type analysisService struct {
	tasks    TaskService
	store    persistence.TaskStorage
	scoring  ScoringService
	feedback FeedbackService
	logger   *slog.Logger
	minLen   int
	slots    chan struct{}
	now      func() time.Time

	wg sync.WaitGroup
}

func NewAnalysisService(tasks TaskService, store persistence.TaskStorage, scoring ScoringService, feedback FeedbackService, logger *slog.Logger, opts AnalysisOptions) AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 5
	}
	s := &analysisService{
		tasks:    tasks,
		store:    store,
		scoring:  scoring,
		feedback: feedback,
		logger:   logger,
		minLen:   opts.MinTextLength,
		now:      time.Now,
	}
	if opts.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	return s
}

// Submit issues a task id and starts the run in its own goroutine. The run
// outlives the request; its failures are recorded on the task, never returned.
func (s *analysisService) Submit(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	id, err := s.tasks.Create(ctx)
	if err != nil {
		return "", err
	}
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.slots != nil {
			s.slots <- struct{}{}
			defer func() { <-s.slots }()
		}
		s.Run(runCtx, id, req)
	}()
	return id, nil
}

func (s *analysisService) Run(ctx context.Context, taskID string, req domain.AnalysisRequest) {
	ctx, span := tracing.Tracer("analysis").Start(ctx, "analysis.run",
		trace.WithNewRoot(),
		trace.WithLinks(trace.LinkFromContext(ctx)),
		trace.WithAttributes(attribute.String("imyme.task_id", taskID)),
	)
	defer span.End()

	start := s.now()
	log := s.logger.With("task_id", taskID)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "analysis panicked", "panic", r, "stack", string(debug.Stack()))
			s.fail(ctx, log, taskID, domain.TaskError{Code: domain.CodeInternalError, Message: fmt.Sprint("panic: ", r)}, start)
		}
	}()

	log.InfoContext(ctx, "analysis started")
	if err := s.store.Save(ctx, domain.TaskRecord{ID: taskID, Status: domain.StatusProcessing}); err != nil {
		tracing.RecordError(span, err)
		log.ErrorContext(ctx, "mark processing failed", "err", err)
		return
	}

	if utf8.RuneCountInString(strings.TrimSpace(req.UserText)) < s.minLen {
		log.WarnContext(ctx, "analysis rejected: text too short")
		s.fail(ctx, log, taskID, domain.TaskError{Code: domain.CodeTextTooShort, Message: textTooShortMessage}, start)
		return
	}

	var (
		score    domain.ScoreResult
		feedback domain.Feedback
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered("scoring", func() error {
		r, err := s.scoring.Score(gctx, req.UserText, req.Criteria)
		if err != nil {
			return err
		}
		score = r
		return nil
	}))
	g.Go(recovered("feedback", func() error {
		r, err := s.feedback.Generate(gctx, req.UserText, req.Criteria, req.History)
		if err != nil {
			return err
		}
		feedback = r
		return nil
	}))
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		s.fail(ctx, log, taskID, domain.TaskError{Code: domain.CodeInternalError, Message: err.Error()}, start)
		return
	}

	result := domain.NewAnalysisResult(score, feedback)
	if err := s.store.Save(ctx, domain.TaskRecord{ID: taskID, Status: domain.StatusCompleted, Result: &result}); err != nil {
		tracing.RecordError(span, err)
		log.ErrorContext(ctx, "save result failed", "err", err)
		return
	}
	s.observe(domain.StatusCompleted, "", start)
	log.InfoContext(ctx, "analysis completed", "score", result.Score, "level", string(result.Level))
}

func (s *analysisService) fail(ctx context.Context, log *slog.Logger, taskID string, te domain.TaskError, start time.Time) {
	if err := s.store.Save(ctx, domain.TaskRecord{ID: taskID, Status: domain.StatusFailed, Error: &te}); err != nil {
		log.ErrorContext(ctx, "save failure failed", "err", err, "code", string(te.Code))
		return
	}
	s.observe(domain.StatusFailed, te.Code, start)
	if te.Code != domain.CodeTextTooShort {
		log.ErrorContext(ctx, "analysis failed", "code", string(te.Code), "err", te.Message)
	}
}

func (s *analysisService) observe(status domain.TaskStatus, code domain.ErrorCode, start time.Time) {
	metrics.TasksFinishedTotal.WithLabelValues(string(status), string(code)).Inc()
	metrics.OrchestrationLatencySeconds.WithLabelValues(string(status)).Observe(s.now().Sub(start).Seconds())
}

func (s *analysisService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recovered turns a panic in a sub-computation into an ordinary error so the
// join barrier still completes.
func recovered(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		return fn()
	}
}
