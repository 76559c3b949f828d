package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type client struct {
	baseURL    string
	apiPrefix  string
	httpClient *http.Client
}

type apiError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type taskStatus struct {
	TaskID string          `json:"taskId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// errTaskFailed is returned by status lookups for FAILED tasks; the body is still decoded.
var errTaskFailed = errors.New("task failed")

func newClient(baseURL, apiPrefix string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiPrefix:  "/" + strings.Trim(apiPrefix, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Minute},
	}
}

func (c *client) request(ctx context.Context, method, path string, body any) (int, envelope, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, envelope{}, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.apiPrefix+path, buf)
	if err != nil {
		return 0, envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, env, fmt.Errorf("error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, env, nil
}

func apiErr(status int, env envelope) error {
	if env.Error != nil {
		return fmt.Errorf("%s (%d): %s", env.Error.Code, status, env.Error.Msg)
	}
	return fmt.Errorf("error (%d)", status)
}

func (c *client) submit(ctx context.Context, text string, criteria map[string]any, history []map[string]any) (string, error) {
	status, env, err := c.request(ctx, http.MethodPost, "/solo/submissions", map[string]any{
		"userText": text,
		"criteria": criteria,
		"history":  history,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusAccepted || !env.Success {
		return "", apiErr(status, env)
	}
	var out taskStatus
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

func (c *client) status(ctx context.Context, taskID string) (taskStatus, error) {
	status, env, err := c.request(ctx, http.MethodGet, "/solo/submissions/"+url.PathEscape(taskID), nil)
	if err != nil {
		return taskStatus{}, err
	}
	if status != http.StatusOK {
		return taskStatus{}, apiErr(status, env)
	}
	var out taskStatus
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return taskStatus{}, err
	}
	if !env.Success {
		return out, fmt.Errorf("%w: %v", errTaskFailed, apiErr(status, env))
	}
	return out, nil
}

// wait polls until the task leaves PENDING/PROCESSING or timeout elapses.
// tick is called after every poll.
func (c *client) wait(ctx context.Context, taskID string, interval, timeout time.Duration, tick func(taskStatus)) (taskStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		st, err := c.status(ctx, taskID)
		if tick != nil {
			tick(st)
		}
		if err != nil || (st.Status != "PENDING" && st.Status != "PROCESSING") {
			return st, err
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("task %s still %s after %s", taskID, st.Status, timeout)
		case <-time.After(interval):
		}
	}
}

func (c *client) transcribe(ctx context.Context, audioURL string) (string, error) {
	status, env, err := c.request(ctx, http.MethodPost, "/transcriptions", map[string]string{"audioUrl": audioURL})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || !env.Success {
		return "", apiErr(status, env)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *client) warmup(ctx context.Context) (string, error) {
	status, env, err := c.request(ctx, http.MethodPost, "/gpu/warmup", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || !env.Success {
		return "", apiErr(status, env)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
