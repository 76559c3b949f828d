package remotejob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/tracing"
	"github.com/imyme/imyme-ai/pkg/domain"
)

// Job states reported by the status endpoint. Anything that is not
// COMPLETED or FAILED keeps the poll loop going.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const maxErrorBodyBytes = 4 << 10

type Options struct {
	BaseURL        string
	APIKey         string
	EndpointID     string
	Timeout        time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

type Client struct {
	endpoint     string
	apiKey       string
	configured   bool
	timeout      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 600 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.RequestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	id := strings.Trim(strings.TrimSpace(opts.EndpointID), "/")
	return &Client{
		endpoint:     base + "/" + id,
		apiKey:       strings.TrimSpace(opts.APIKey),
		configured:   id != "" && strings.TrimSpace(opts.APIKey) != "",
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		httpClient:   hc,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepOrDone,
	}
}

// Configured reports whether credentials and an endpoint id are present.
func (c *Client) Configured() bool { return c.configured }

type runRequest struct {
	Input any `json:"input"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// SubmitAndWait submits input and polls at a fixed interval until the job
// completes, fails, or the timeout elapses. The returned bytes are the raw
// "output" document of the completed job.
func (c *Client) SubmitAndWait(ctx context.Context, input any) (json.RawMessage, error) {
	ctx, span := tracing.Tracer("remotejob").Start(ctx, "remotejob.submit_and_wait")
	defer span.End()

	out, jobID, err := c.submitAndWait(ctx, input)
	span.SetAttributes(attribute.String("remotejob.id", jobID))
	metrics.RemoteJobOutcomesTotal.WithLabelValues("wait", outcomeLabel(err)).Inc()
	tracing.RecordError(span, err)
	return out, err
}

func (c *Client) submitAndWait(ctx context.Context, input any) (json.RawMessage, string, error) {
	if !c.configured {
		return nil, "", &CommunicationError{Op: "run", Err: ErrNotConfigured}
	}
	jobID, err := c.submit(ctx, input)
	if err != nil {
		return nil, "", err
	}
	c.logger.InfoContext(ctx, "remote job submitted", "job_id", jobID)

	start := c.now()
	polls := 0
	for {
		if elapsed := c.now().Sub(start); elapsed > c.timeout {
			c.logger.WarnContext(ctx, "remote job timed out", "job_id", jobID, "polls", polls)
			return nil, jobID, &TimeoutError{JobID: jobID, Elapsed: elapsed, Polls: polls}
		}

		st, err := c.status(ctx, jobID)
		polls++
		if err != nil {
			return nil, jobID, err
		}
		metrics.RemoteJobPollsTotal.WithLabelValues(pollLabel(st.Status)).Inc()

		switch st.Status {
		case StatusCompleted:
			c.logger.InfoContext(ctx, "remote job completed", "job_id", jobID, "polls", polls)
			return st.Output, jobID, nil
		case StatusFailed:
			c.logger.ErrorContext(ctx, "remote job failed", "job_id", jobID, "detail", errorDetail(st.Error))
			return nil, jobID, &ExecutionError{JobID: jobID, Detail: errorDetail(st.Error)}
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, jobID, &CommunicationError{Op: "status", Err: err}
		}
	}
}

// FireAndForget submits input without waiting. It never returns an error;
// submission failures come back as a failed WarmupResult.
func (c *Client) FireAndForget(ctx context.Context, input any) domain.WarmupResult {
	ctx, span := tracing.Tracer("remotejob").Start(ctx, "remotejob.fire_and_forget")
	defer span.End()

	if !c.configured {
		metrics.RemoteJobOutcomesTotal.WithLabelValues("fire", "failure").Inc()
		return domain.WarmupResult{Status: domain.WarmupFailed, Error: ErrNotConfigured.Error()}
	}
	jobID, err := c.submit(ctx, input)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RemoteJobOutcomesTotal.WithLabelValues("fire", "failure").Inc()
		c.logger.WarnContext(ctx, "remote job fire-and-forget failed", "err", err)
		return domain.WarmupResult{Status: domain.WarmupFailed, Error: err.Error()}
	}
	span.SetAttributes(attribute.String("remotejob.id", jobID))
	metrics.RemoteJobOutcomesTotal.WithLabelValues("fire", "success").Inc()
	return domain.WarmupResult{Status: domain.WarmupSuccess, JobID: jobID}
}

func (c *Client) submit(ctx context.Context, input any) (string, error) {
	body, err := json.Marshal(runRequest{Input: input})
	if err != nil {
		return "", &CommunicationError{Op: "run", Err: err}
	}
	var rr runResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint+"/run", body, "run", &rr); err != nil {
		return "", err
	}
	if strings.TrimSpace(rr.ID) == "" {
		return "", &CommunicationError{Op: "run", Err: errors.New("response missing job id")}
	}
	return rr.ID, nil
}

func (c *Client) status(ctx context.Context, jobID string) (statusResponse, error) {
	var st statusResponse
	err := c.do(ctx, http.MethodGet, c.endpoint+"/status/"+jobID, nil, "status", &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, op string, dst any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return &CommunicationError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CommunicationError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &CommunicationError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(snippet)))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &CommunicationError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail renders the remote "error" field, which may be a string or an object.
func errorDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "no error detail"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func pollLabel(status string) string {
	switch status {
	case StatusInQueue, StatusInProgress, StatusCompleted, StatusFailed:
		return status
	}
	return "OTHER"
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRemoteExecution):
		return "failed"
	default:
		return "communication_error"
	}
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
