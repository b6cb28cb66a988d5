// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"mcqsolver/internal/inference"
	"mcqsolver/internal/logging"
	"mcqsolver/internal/page"
	"mcqsolver/internal/ratelimit"
	"mcqsolver/internal/relay"
	"mcqsolver/internal/retry"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Inference InferenceConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Capture   CaptureConfig
	Relay     RelayConfig
	Logging   LogConfig

	SettingsPath string `envconfig:"MCQ_SETTINGS_PATH" default:"mcqsolver-settings.json"`
	// APIKey is used when neither the request nor the settings store
	// carries a key.
	APIKey string `envconfig:"GEMINI_API_KEY"`
}

// ServerConfig holds the control-surface HTTP server configuration.
type ServerConfig struct {
	Addr string `envconfig:"MCQ_ADDR" default:":8090"`
}

// BrowserConfig selects the page being solved.
type BrowserConfig struct {
	PageURL   string        `envconfig:"MCQ_PAGE_URL"`
	RemoteURL string        `envconfig:"MCQ_CHROME_REMOTE_URL"`
	Match     string        `envconfig:"MCQ_PAGE_MATCH"`
	Headless  bool          `envconfig:"MCQ_HEADLESS" default:"true"`
	Timeout   time.Duration `envconfig:"MCQ_BROWSER_TIMEOUT" default:"30s"`
}

// InferenceConfig selects the vision model backend.
type InferenceConfig struct {
	Backend  string        `envconfig:"MCQ_INFERENCE_BACKEND" default:"genai"`
	Model    string        `envconfig:"MCQ_MODEL" default:"gemini-2.0-flash"`
	Endpoint string        `envconfig:"MCQ_INFERENCE_ENDPOINT"`
	Timeout  time.Duration `envconfig:"MCQ_INFERENCE_TIMEOUT" default:"60s"`
}

// RateLimitConfig bounds inference calls per rolling window.
type RateLimitConfig struct {
	PerMinute int           `envconfig:"MCQ_RATE_PER_MINUTE" default:"10"`
	Window    time.Duration `envconfig:"MCQ_RATE_WINDOW" default:"60s"`
	Buffer    time.Duration `envconfig:"MCQ_RATE_BUFFER" default:"1s"`
}

// RetryConfig holds the inference retry policy.
type RetryConfig struct {
	MaxAttempts     int           `envconfig:"MCQ_MAX_ATTEMPTS" default:"5"`
	RateLimitBase   time.Duration `envconfig:"MCQ_RATE_LIMIT_BASE_DELAY" default:"5s"`
	RateLimitJitter time.Duration `envconfig:"MCQ_RATE_LIMIT_JITTER" default:"5s"`
	RateLimitStep   time.Duration `envconfig:"MCQ_RATE_LIMIT_STEP" default:"3s"`
	TransientBase   time.Duration `envconfig:"MCQ_TRANSIENT_BASE_DELAY" default:"1s"`
	TransientJitter time.Duration `envconfig:"MCQ_TRANSIENT_JITTER" default:"1s"`
}

// CaptureConfig tunes screenshot capture.
type CaptureConfig struct {
	SettleDelay  time.Duration `envconfig:"MCQ_SETTLE_DELAY" default:"500ms"`
	SettleJitter time.Duration `envconfig:"MCQ_SETTLE_JITTER" default:"500ms"`
	MaxWidth     int           `envconfig:"MCQ_CAPTURE_MAX_WIDTH" default:"1280"`
	DebugDir     string        `envconfig:"MCQ_DEBUG_DIR"`
	// RemediateHosts is a comma separated list of cross-origin restricted hosts.
	RemediateHosts []string `envconfig:"MCQ_REMEDIATE_HOSTS" default:"storage.googleapis.com"`
}

// RelayConfig configures the cross-origin relay.
type RelayConfig struct {
	UserAgent string        `envconfig:"MCQ_RELAY_USER_AGENT"`
	Timeout   time.Duration `envconfig:"MCQ_RELAY_TIMEOUT" default:"30s"`
	RPS       float64       `envconfig:"MCQ_RELAY_RPS" default:"5"`
	CacheMB   int           `envconfig:"MCQ_RELAY_CACHE_MB" default:"32"`
	MaxMB     int           `envconfig:"MCQ_RELAY_MAX_MB" default:"20"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8090"},
		Browser: BrowserConfig{Headless: true, Timeout: 30 * time.Second},
		Inference: InferenceConfig{
			Backend: inference.BackendGenAI,
			Model:   inference.DefaultModel,
			Timeout: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{PerMinute: 10, Window: time.Minute, Buffer: time.Second},
		Retry: RetryConfig{
			MaxAttempts:     5,
			RateLimitBase:   5 * time.Second,
			RateLimitJitter: 5 * time.Second,
			RateLimitStep:   3 * time.Second,
			TransientBase:   time.Second,
			TransientJitter: time.Second,
		},
		Capture: CaptureConfig{
			SettleDelay:    500 * time.Millisecond,
			SettleJitter:   500 * time.Millisecond,
			MaxWidth:       1280,
			RemediateHosts: []string{"storage.googleapis.com"},
		},
		Relay:        RelayConfig{Timeout: 30 * time.Second, RPS: 5, CacheMB: 32, MaxMB: 20},
		Logging:      LogConfig{Level: "info"},
		SettingsPath: "mcqsolver-settings.json",
	}
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Development: c.Logging.Development}
}

func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{Limit: c.RateLimit.PerMinute, Window: c.RateLimit.Window, Buffer: c.RateLimit.Buffer}
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		RateLimitBase:   c.Retry.RateLimitBase,
		RateLimitJitter: c.Retry.RateLimitJitter,
		RateLimitStep:   c.Retry.RateLimitStep,
		TransientBase:   c.Retry.TransientBase,
		TransientJitter: c.Retry.TransientJitter,
	}
}

func (c *Config) RelayClient() relay.Config {
	rc := relay.DefaultConfig()
	if ua := strings.TrimSpace(c.Relay.UserAgent); ua != "" {
		rc.UserAgent = ua
	}
	if c.Relay.Timeout > 0 {
		rc.Timeout = c.Relay.Timeout
	}
	rc.RPS = c.Relay.RPS
	rc.CacheMB = c.Relay.CacheMB
	if c.Relay.MaxMB > 0 {
		rc.MaxBytes = int64(c.Relay.MaxMB) << 20
	}
	return rc
}

// InferenceEngine returns the engine configuration without a key; keys are
// bound per solve run.
func (c *Config) InferenceEngine() inference.Config {
	return inference.Config{
		Backend:  c.Inference.Backend,
		Model:    c.Inference.Model,
		Endpoint: c.Inference.Endpoint,
		Timeout:  c.Inference.Timeout,
	}
}

func (c *Config) Chrome() page.ChromeConfig {
	return page.ChromeConfig{
		URL:       c.Browser.PageURL,
		RemoteURL: c.Browser.RemoteURL,
		Match:     c.Browser.Match,
		Headless:  c.Browser.Headless,
		Timeout:   c.Browser.Timeout,
	}
}
