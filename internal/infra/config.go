package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                  string
	Port                    string
	MetricsPort             string
	GeminiAPIKey            string
	GeminiBaseURL           string
	GeminiImageModel        string
	ReplicateAPIToken       string
	ReplicateBaseURL        string
	ReplicateUpscaleVersion string
	CORSAllowedOrigins      []string
	ExposeStackTraces       bool
	TrustProxyHeaders       bool
	MaxBodyBytes            int64
	FallbackConcurrency     int
	HTTPReadTimeout         time.Duration
	HTTPWriteTimeout        time.Duration
	HTTPIdleTimeout         time.Duration
	UpstreamTimeout         time.Duration
	RateLimitPerMin         int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		Port:                    getEnv("PORT", "8080"),
		MetricsPort:             strings.TrimSpace(os.Getenv("METRICS_PORT")),
		GeminiAPIKey:            strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiImageModel:        getEnv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview"),
		ReplicateAPIToken:       strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:        getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateUpscaleVersion: getEnv("REPLICATE_UPSCALE_VERSION", "f121d640bd286e1fdc67f9799164c1d5be36ff74576ee11c803ae5b665dd46aa"),
		CORSAllowedOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ExposeStackTraces:       getEnvBool("EXPOSE_STACK_TRACES", false),
		TrustProxyHeaders:       getEnvBool("TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:            int64(getEnvInt("MAX_BODY_BYTES", 64<<20)),
		FallbackConcurrency:     getEnvInt("FALLBACK_CONCURRENCY", 0),
		HTTPReadTimeout:         time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:        time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:         time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		UpstreamTimeout:         time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 120)),
		RateLimitPerMin:         getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.HTTPReadTimeout <= 0 || cfg.HTTPWriteTimeout <= 0 || cfg.HTTPIdleTimeout <= 0 {
		return nil, fmt.Errorf("HTTP timeouts must be positive")
	}
	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if cfg.FallbackConcurrency < 0 {
		return nil, fmt.Errorf("FALLBACK_CONCURRENCY must not be negative")
	}
	if cfg.MetricsPort != "" && cfg.MetricsPort == cfg.Port {
		return nil, fmt.Errorf("METRICS_PORT must differ from PORT")
	}

	return cfg, nil
}

// Batch polling budget (interval x attempts) and sync retry shape, mirrored
// from the orchestrator and genai client defaults.
const (
	batchPollBudget    = 5 * time.Minute
	syncAttempts       = 3
	syncBackoffCeiling = 3 * time.Second
)

// MinWriteTimeout is the longest a batch request can legitimately take: one
// submit, the full poll budget, then one fallback call with all its retries.
// A write timeout below it cuts slow batches off without a response.
func (c *Config) MinWriteTimeout() time.Duration {
	return c.UpstreamTimeout + batchPollBudget + syncAttempts*c.UpstreamTimeout + syncBackoffCeiling
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
