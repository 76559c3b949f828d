package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/imyme/imyme-ai/internal/backoff"
	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/middleware"
	"github.com/imyme/imyme-ai/internal/providers"
	"github.com/imyme/imyme-ai/internal/ratelimit"
	"github.com/imyme/imyme-ai/internal/remotejob"
	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/internal/tracing"
	"github.com/imyme/imyme-ai/pkg/config"
	"github.com/imyme/imyme-ai/pkg/persistence"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type Application struct {
	Config      *config.Config
	Engine      *gin.Engine
	Logger      *slog.Logger
	TZ          *time.Location
	Persistence persistence.PluginPersistence
	Tasks       services.TaskService
	Analysis    services.AnalysisService
	Speech      services.SpeechService
	Cleanup     services.TaskCleanupService
	RateLimiter ratelimit.Limiter

	// TracingShutdown flushes the span exporter; a no-op when tracing is off
	TracingShutdown tracing.ShutdownFunc

	generator  providers.Generator
	remoteJobs services.RemoteJobs
	startBg    bool
	stopBg     context.CancelFunc
	bgDone     chan struct{}
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithPersistence replaces the configured task store backend
func WithPersistence(p persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Persistence = p
		return nil
	}
}

// WithGenerator replaces the Gemini client used for scoring and feedback
func WithGenerator(gen providers.Generator) ApplicationOption {
	return func(app *Application) error {
		app.generator = gen
		return nil
	}
}

// WithRemoteJobs replaces the GPU endpoint client used by the speech service
func WithRemoteJobs(jobs services.RemoteJobs) ApplicationOption {
	return func(app *Application) error {
		app.remoteJobs = jobs
		return nil
	}
}

// WithLogger replaces the config-derived logger
func WithLogger(logger *slog.Logger) ApplicationOption {
	return func(app *Application) error {
		app.Logger = logger
		return nil
	}
}

// WithoutBackground skips starting the retention sweeper
func WithoutBackground() ApplicationOption {
	return func(app *Application) error {
		app.startBg = false
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}

	app := &Application{Config: cfg, TZ: loc, startBg: true}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Logger == nil {
		app.Logger = newLogger(cfg)
		slog.SetDefault(app.Logger)
	}
	logger := app.Logger

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	if app.Persistence == nil {
		p, err := newPersistence(cfg, loc)
		if err != nil {
			return nil, err
		}
		app.Persistence = p
	}
	store := app.Persistence.TaskStorage()
	metrics.RegisterStoreCollector(store, logger)

	if rc, ok := app.Persistence.(interface{ Client() *redis.Client }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := providers.PingRedis(ctx, rc.Client())
		cancel()
		if err != nil {
			logger.Warn("task store unreachable at startup", "err", err)
		}
		app.RateLimiter = ratelimit.NewTokenBucketLimiter(rc.Client(), cfg.ServiceName)
	}

	if app.generator == nil {
		gen, err := newGenerator(cfg, logger)
		if err != nil {
			// analyses fail with INTERNAL_ERROR until a key is configured
			logger.Warn("gemini disabled", "err", err)
		} else {
			app.generator = gen
		}
	}
	if app.remoteJobs == nil {
		app.remoteJobs = remotejob.New(remotejob.Options{
			BaseURL:        cfg.RemoteJob.BaseURL,
			APIKey:         cfg.RemoteJob.APIKey,
			EndpointID:     cfg.RemoteJob.EndpointID,
			Timeout:        time.Duration(cfg.RemoteJob.TimeoutSeconds) * time.Second,
			PollInterval:   time.Duration(cfg.RemoteJob.PollIntervalSeconds) * time.Second,
			RequestTimeout: time.Duration(cfg.RemoteJob.RequestTimeoutSeconds) * time.Second,
			Logger:         logger,
		})
	}

	prompts := services.NewPromptManager(time.Now().UnixNano())
	app.Tasks = services.NewTaskService(store, logger)
	app.Analysis = services.NewAnalysisService(
		app.Tasks,
		store,
		services.NewScoringService(app.generator, prompts, logger),
		services.NewFeedbackService(app.generator, prompts, "", logger),
		logger,
		services.AnalysisOptions{
			MinTextLength: cfg.Analysis.MinTextLength,
			MaxConcurrent: cfg.Analysis.MaxConcurrent,
		},
	)
	app.Speech = services.NewSpeechService(app.remoteJobs, cfg.MockRemoteJobs(), logger)
	app.Cleanup = services.NewTaskCleanupService(store, logger, cfg.TaskStore.RetentionSeconds, cfg.TaskStore.CleanupIntervalSeconds)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.ServiceName),
	)
	app.Engine = engine

	if app.startBg {
		bgCtx, cancel := context.WithCancel(context.Background())
		app.stopBg = cancel
		app.bgDone = make(chan struct{})
		go func() {
			defer close(app.bgDone)
			app.Cleanup.Start(bgCtx)
		}()
	}
	return app, nil
}

// Shutdown stops the sweeper, waits for detached analyses, then closes the
// store and flushes spans.
func (app *Application) Shutdown(ctx context.Context) error {
	app.stopBackground(ctx)
	waitErr := app.Analysis.Wait(ctx)
	if waitErr != nil {
		app.Logger.Warn("analyses still running at shutdown", "err", waitErr)
	}
	closeErr := app.Persistence.Close()
	if app.TracingShutdown != nil {
		_ = app.TracingShutdown(ctx)
	}
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}

func (app *Application) stopBackground(ctx context.Context) {
	if app.stopBg == nil {
		return
	}
	app.stopBg()
	select {
	case <-app.bgDone:
	case <-ctx.Done():
		app.Logger.Warn("task cleanup still running at shutdown", "err", ctx.Err())
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", cfg.ServiceName, "env", cfg.Env)
}

func newPersistence(cfg *config.Config, loc *time.Location) (persistence.PluginPersistence, error) {
	raw, err := json.Marshal(cfg.TaskStore.Options)
	if err != nil {
		return nil, fmt.Errorf("taskStore.options: %w", err)
	}
	if cfg.TaskStore.Options == nil {
		raw = nil
	}
	return persistence.NewPersistence(
		persistence.ProviderConfig{Type: cfg.TaskStore.Provider, Config: raw},
		persistence.PluginConfig{Timezone: loc},
	)
}

func newGenerator(cfg *config.Config, logger *slog.Logger) (providers.Generator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return providers.NewGeminiGenerator(ctx, providers.GeminiOptions{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		MaxRetries: cfg.Gemini.MaxRetries,
		Policy:     backoff.Policy(cfg.Gemini.BackoffPolicy),
		RetryBase:  time.Duration(cfg.Gemini.RetryBaseSeconds) * time.Second,
		RetryMax:   time.Duration(cfg.Gemini.RetryMaxSeconds) * time.Second,
		Logger:     logger,
	})
}
