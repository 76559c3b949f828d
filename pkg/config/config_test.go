package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoadConfigOptional_EmptyPath tests loading when file path is empty
func TestLoadConfigOptional_EmptyPath(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional with empty path should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	if cfg.Port != 9999 {
		t.Errorf("Expected Port=9999 from env, got %d", cfg.Port)
	}
}

func TestLoadConfigOptional_Defaults(t *testing.T) {
	cfg, err := LoadConfigOptional("   ")
	if err != nil {
		t.Fatalf("LoadConfigOptional with whitespace path should not error: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Expected default port 8000, got %d", cfg.Port)
	}
	if cfg.RemoteJob.TimeoutSeconds != 600 {
		t.Errorf("Expected default remote timeout 600, got %d", cfg.RemoteJob.TimeoutSeconds)
	}
	if cfg.RemoteJob.PollIntervalSeconds != 2 {
		t.Errorf("Expected default poll interval 2, got %d", cfg.RemoteJob.PollIntervalSeconds)
	}
	if cfg.Analysis.MinTextLength != 5 {
		t.Errorf("Expected min text length 5, got %d", cfg.Analysis.MinTextLength)
	}
	if cfg.Analysis.MaxConcurrent != 0 {
		t.Errorf("Expected unbounded orchestration by default, got %d", cfg.Analysis.MaxConcurrent)
	}
	if cfg.TaskStore.Provider != "memory" {
		t.Errorf("Expected memory store by default, got %q", cfg.TaskStore.Provider)
	}
	if cfg.TaskStore.RetentionSeconds != 0 {
		t.Errorf("Expected retention sweeper disabled by default, got %d", cfg.TaskStore.RetentionSeconds)
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Errorf("Expected /api/v1 prefix, got %q", cfg.APIPrefix)
	}
}

// TestLoadConfigOptional_FileNotExist tests loading when file does not exist
func TestLoadConfigOptional_FileNotExist(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "config-does-not-exist.yaml")

	cfg, err := LoadConfigOptional(nonExistentPath)
	if err != nil {
		t.Fatalf("LoadConfigOptional with non-existent file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
}

// TestLoadConfigOptional_InvalidYAML tests loading when file exists but has invalid YAML
func TestLoadConfigOptional_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
port: 8080
remoteJob:
  apiKey: "k"
    invalid indentation here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadConfigOptional(configPath); err == nil {
		t.Fatal("Expected error when loading invalid YAML, got nil")
	}
}

func TestLoadConfigOptional_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "valid.yaml")

	validYAML := `
port: 8081
env: "staging"
logLevel: "debug"
remoteJob:
  apiKey: "rp-key"
  endpointId: "ep-123"
  timeoutSeconds: 120
gemini:
  apiKey: "g-key"
  model: "gemini-test"
analysis:
  maxConcurrent: 4
taskStore:
  provider: "redis"
  retentionSeconds: 3600
  options:
    addr: "redis:6379"
rateLimit:
  submissions:
    requestsPerMinute: 30
    burstSize: 5
`
	if err := os.WriteFile(configPath, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfigOptional(configPath)
	if err != nil {
		t.Fatalf("LoadConfigOptional with valid config should not error: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("Expected Port=8081, got %d", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("Expected Env='staging', got %q", cfg.Env)
	}
	if !cfg.RemoteJob.Configured() {
		t.Error("Expected remote job to be configured")
	}
	if cfg.RemoteJob.TimeoutSeconds != 120 {
		t.Errorf("Expected timeout 120, got %d", cfg.RemoteJob.TimeoutSeconds)
	}
	if cfg.Gemini.Model != "gemini-test" {
		t.Errorf("Expected model gemini-test, got %q", cfg.Gemini.Model)
	}
	if cfg.Analysis.MaxConcurrent != 4 {
		t.Errorf("Expected maxConcurrent 4, got %d", cfg.Analysis.MaxConcurrent)
	}
	if cfg.TaskStore.Options["addr"] != "redis:6379" {
		t.Errorf("Expected redis addr option, got %v", cfg.TaskStore.Options)
	}
	if cfg.RateLimit.Submissions.BurstSize != 5 {
		t.Errorf("Expected burst 5, got %d", cfg.RateLimit.Submissions.BurstSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

// TestLoadConfigOptional_EnvOverrides tests that environment variables override file values
func TestLoadConfigOptional_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configYAML := `
port: 8080
remoteJob:
  apiKey: "file-key"
  endpointId: "file-endpoint"
gemini:
  model: "file-model"
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("RUNPOD_API_KEY", "env-key")
	t.Setenv("RUNPOD_TIMEOUT_SECONDS", "30")
	t.Setenv("GEMINI_MODEL", "env-model")
	t.Setenv("TASK_STORE_PROVIDER", "redis")
	t.Setenv("REDIS_ADDR", "env-redis:6380")
	t.Setenv("RUNPOD_MOCK_WHEN_UNCONFIGURED", "false")

	cfg, err := LoadConfigOptional(configPath)
	if err != nil {
		t.Fatalf("LoadConfigOptional should not error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected Port=9090 from env, got %d", cfg.Port)
	}
	if cfg.RemoteJob.APIKey != "env-key" {
		t.Errorf("Expected APIKey from env, got %q", cfg.RemoteJob.APIKey)
	}
	if cfg.RemoteJob.EndpointID != "file-endpoint" {
		t.Errorf("Expected EndpointID from file, got %q", cfg.RemoteJob.EndpointID)
	}
	if cfg.RemoteJob.TimeoutSeconds != 30 {
		t.Errorf("Expected timeout 30 from env, got %d", cfg.RemoteJob.TimeoutSeconds)
	}
	if cfg.Gemini.Model != "env-model" {
		t.Errorf("Expected model from env, got %q", cfg.Gemini.Model)
	}
	if cfg.TaskStore.Provider != "redis" || cfg.TaskStore.Options["addr"] != "env-redis:6380" {
		t.Errorf("Expected redis store from env, got %+v", cfg.TaskStore)
	}
	if cfg.MockRemoteJobs() {
		t.Error("Expected mock toggle off from env")
	}
}

func TestMockRemoteJobsDefaultsToDevOnly(t *testing.T) {
	dev := &Config{Env: "dev"}
	if !dev.MockRemoteJobs() {
		t.Error("Expected mock on by default in dev")
	}
	staging := &Config{Env: "staging"}
	if staging.MockRemoteJobs() {
		t.Error("Expected mock off by default outside dev")
	}
	on := true
	staging.RemoteJob.MockWhenUnconfigured = &on
	if !staging.MockRemoteJobs() {
		t.Error("Expected explicit toggle to win")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"dev defaults are valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port must be"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "logLevel"},
		{"bad base url", func(c *Config) { c.RemoteJob.BaseURL = "ftp://x" }, "remoteJob.baseUrl"},
		{"missing credentials outside dev", func(c *Config) { c.Env = "staging" }, "remoteJob.apiKey"},
		{"mock in production", func(c *Config) {
			on := true
			c.Env = "production"
			c.Gemini.APIKey = "k"
			c.RemoteJob.MockWhenUnconfigured = &on
		}, "must not be used in production"},
		{"gemini key in production", func(c *Config) {
			c.Env = "prod"
			c.RemoteJob.APIKey, c.RemoteJob.EndpointID = "k", "e"
		}, "gemini.apiKey"},
		{"unknown store", func(c *Config) { c.TaskStore.Provider = "etcd" }, "taskStore.provider"},
		{"rate limit needs redis", func(c *Config) { c.RateLimit.Submissions = RateLimitBucketConfig{RequestsPerMinute: 10, BurstSize: 2} }, "requires taskStore.provider=redis"},
		{"interval above timeout", func(c *Config) { c.RemoteJob.PollIntervalSeconds = 700 }, "pollIntervalSeconds"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "sampleRatio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
