package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	Env         string `yaml:"env"`
	ServiceName string `yaml:"serviceName"`
	APIPrefix   string `yaml:"apiPrefix"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`

	RemoteJob RemoteJobConfig `yaml:"remoteJob"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	TaskStore TaskStoreConfig `yaml:"taskStore"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// RemoteJobConfig points at the detached GPU compute endpoint (RunPod serverless)
type RemoteJobConfig struct {
	BaseURL               string `yaml:"baseUrl"`
	APIKey                string `yaml:"apiKey"`
	EndpointID            string `yaml:"endpointId"`
	TimeoutSeconds        int    `yaml:"timeoutSeconds"`
	PollIntervalSeconds   int    `yaml:"pollIntervalSeconds"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`
	// MockWhenUnconfigured returns canned results when credentials are missing.
	// Dev/test convenience only; unset means "on in dev, off elsewhere".
	MockWhenUnconfigured *bool `yaml:"mockWhenUnconfigured"`
}

func (c RemoteJobConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.EndpointID) != ""
}

type GeminiConfig struct {
	APIKey           string `yaml:"apiKey"`
	Model            string `yaml:"model"`
	MaxRetries       int    `yaml:"maxRetries"`
	BackoffPolicy    string `yaml:"backoffPolicy"`
	RetryBaseSeconds int    `yaml:"retryBaseSeconds"`
	RetryMaxSeconds  int    `yaml:"retryMaxSeconds"`
}

type AnalysisConfig struct {
	MinTextLength int `yaml:"minTextLength"`
	// MaxConcurrent bounds in-flight orchestrations; 0 means unbounded.
	MaxConcurrent int `yaml:"maxConcurrent"`
}

type TaskStoreConfig struct {
	Provider               string         `yaml:"provider"`
	Options                map[string]any `yaml:"options"`
	RetentionSeconds       int            `yaml:"retentionSeconds"`
	CleanupIntervalSeconds int            `yaml:"cleanupIntervalSeconds"`
}

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Submissions RateLimitBucketConfig `yaml:"submissions"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but treats an empty path or a
// missing file as "no file": env overrides and defaults still apply.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		cfg, err := LoadConfig(filePath)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Printf("Warning: config file %s not found, using env and defaults\n", filePath)
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	envInt("PORT", &c.Port)
	envString("ENV", &c.Env)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)
	envString("TIMEZONE", &c.Timezone)
	envString("API_PREFIX", &c.APIPrefix)

	envString("RUNPOD_BASE_URL", &c.RemoteJob.BaseURL)
	envString("RUNPOD_API_KEY", &c.RemoteJob.APIKey)
	envString("RUNPOD_ENDPOINT_ID", &c.RemoteJob.EndpointID)
	envInt("RUNPOD_TIMEOUT_SECONDS", &c.RemoteJob.TimeoutSeconds)
	envInt("RUNPOD_POLL_INTERVAL_SECONDS", &c.RemoteJob.PollIntervalSeconds)
	if v := strings.TrimSpace(os.Getenv("RUNPOD_MOCK_WHEN_UNCONFIGURED")); v != "" {
		b := parseBool(v)
		c.RemoteJob.MockWhenUnconfigured = &b
	}

	envString("GEMINI_API_KEY", &c.Gemini.APIKey)
	envString("GEMINI_MODEL", &c.Gemini.Model)

	envInt("ANALYSIS_MAX_CONCURRENT", &c.Analysis.MaxConcurrent)

	envString("TASK_STORE_PROVIDER", &c.TaskStore.Provider)
	envInt("TASK_RETENTION_SECONDS", &c.TaskStore.RetentionSeconds)
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.setStoreOption("addr", v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_PASSWORD")); v != "" {
		c.setStoreOption("password", v)
	}

	if v := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.ServiceName == "" {
		c.ServiceName = "imyme-ai"
	}
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/v1"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	if c.RemoteJob.BaseURL == "" {
		c.RemoteJob.BaseURL = "https://api.runpod.ai/v2"
	}
	if c.RemoteJob.TimeoutSeconds <= 0 {
		c.RemoteJob.TimeoutSeconds = 600
	}
	if c.RemoteJob.PollIntervalSeconds <= 0 {
		c.RemoteJob.PollIntervalSeconds = 2
	}
	if c.RemoteJob.RequestTimeoutSeconds <= 0 {
		c.RemoteJob.RequestTimeoutSeconds = 30
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-3-pro-preview"
	}
	if c.Gemini.MaxRetries < 0 {
		c.Gemini.MaxRetries = 0
	}
	if c.Gemini.BackoffPolicy == "" {
		c.Gemini.BackoffPolicy = "exp_full_jitter"
	}
	if c.Gemini.RetryBaseSeconds <= 0 {
		c.Gemini.RetryBaseSeconds = 1
	}
	if c.Gemini.RetryMaxSeconds <= 0 {
		c.Gemini.RetryMaxSeconds = 10
	}

	if c.Analysis.MinTextLength <= 0 {
		c.Analysis.MinTextLength = 5
	}

	if c.TaskStore.Provider == "" {
		c.TaskStore.Provider = "memory"
	}
	if c.TaskStore.CleanupIntervalSeconds <= 0 {
		c.TaskStore.CleanupIntervalSeconds = 60
	}

	if c.RemoteJob.APIKey == "" || c.RemoteJob.EndpointID == "" {
		log.Println("Warning: RunPod credentials not set (remote jobs unavailable unless mocked)")
	}
	if c.Gemini.APIKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set (analysis tasks will fail)")
	}
}

// MockRemoteJobs reports whether missing remote credentials should yield canned results.
func (c *Config) MockRemoteJobs() bool {
	if c.RemoteJob.MockWhenUnconfigured != nil {
		return *c.RemoteJob.MockWhenUnconfigured
	}
	return c.isDev()
}

func (c *Config) isDev() bool {
	return strings.ToLower(strings.TrimSpace(c.Env)) == "dev"
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	prod := env == "prod" || env == "production"

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logLevel must be one of debug|info|warn|error")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, "logFormat must be json or text")
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, "apiPrefix must start with /")
	}

	u, err := url.Parse(c.RemoteJob.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "remoteJob.baseUrl must be a valid http(s) URL")
	}
	if !c.RemoteJob.Configured() {
		if !c.MockRemoteJobs() {
			errs = append(errs, "remoteJob.apiKey and remoteJob.endpointId are required when mockWhenUnconfigured is off")
		} else if prod {
			errs = append(errs, "remoteJob.mockWhenUnconfigured must not be used in production")
		}
	}
	if c.RemoteJob.PollIntervalSeconds > c.RemoteJob.TimeoutSeconds {
		errs = append(errs, "remoteJob.pollIntervalSeconds must not exceed timeoutSeconds")
	}

	if strings.TrimSpace(c.Gemini.APIKey) == "" && prod {
		errs = append(errs, "gemini.apiKey is required in production")
	}

	switch c.TaskStore.Provider {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("taskStore.provider %q is not supported (memory|redis)", c.TaskStore.Provider))
	}
	if c.TaskStore.RetentionSeconds < 0 {
		errs = append(errs, "taskStore.retentionSeconds must be >= 0")
	}
	if c.Analysis.MaxConcurrent < 0 {
		errs = append(errs, "analysis.maxConcurrent must be >= 0")
	}
	sub := c.RateLimit.Submissions
	if (sub.RequestsPerMinute > 0 || sub.BurstSize > 0) && c.TaskStore.Provider != "redis" {
		errs = append(errs, "rateLimit.submissions requires taskStore.provider=redis")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be within [0,1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) setStoreOption(key string, value any) {
	if c.TaskStore.Options == nil {
		c.TaskStore.Options = map[string]any{}
	}
	c.TaskStore.Options[key] = value
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
