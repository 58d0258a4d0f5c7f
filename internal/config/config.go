package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is sent upstream and written into every playlist entry.
// Upstream servers reject default client identifiers, so this must look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds run settings. Load from env; call LoadEnvFile(".env") first to use a .env file.
type Config struct {
	// Output
	OutputPath     string // playlist file, written only when at least one entry resolved
	JSONOutputPath string // optional JSON sidecar of the same entries
	MetricsFile    string // optional node-exporter textfile

	// Registry
	RegistryFile string   // optional YAML replacing the embedded provider registry
	Providers    []string // optional subset of provider names to resolve; empty = all

	// Upstream
	UserAgent    string
	RelayURL     string  // request relay prefix for multi-hop providers; "" = direct
	RelayRPS     float64 // process-wide relay rate
	FetchTimeout time.Duration
	ProbeTimeout time.Duration
	Retries      int
	RetryBackoff time.Duration
	// Per-provider pacing between requests; 5 rps is one request every 200ms.
	RequestsPerSecond int
	HostConcurrency   int
	PageCacheTTL      time.Duration

	// Run
	Workers    int
	RunTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
	SafeLogs bool // redact URLs in log output
}

// Load reads config from environment (prefix SPORTLIST_).
func Load() *Config {
	c := &Config{
		OutputPath:        getEnv("SPORTLIST_OUTPUT", "playlist.m3u"),
		JSONOutputPath:    os.Getenv("SPORTLIST_JSON_OUTPUT"),
		MetricsFile:       os.Getenv("SPORTLIST_METRICS_FILE"),
		RegistryFile:      os.Getenv("SPORTLIST_REGISTRY_FILE"),
		Providers:         getEnvList("SPORTLIST_PROVIDERS"),
		UserAgent:         getEnv("SPORTLIST_USER_AGENT", DefaultUserAgent),
		RelayURL:          strings.TrimSpace(os.Getenv("SPORTLIST_RELAY_URL")),
		RelayRPS:          getEnvFloat("SPORTLIST_RELAY_RPS", 2),
		FetchTimeout:      getEnvDuration("SPORTLIST_FETCH_TIMEOUT", 30*time.Second),
		ProbeTimeout:      getEnvDuration("SPORTLIST_PROBE_TIMEOUT", 5*time.Second),
		Retries:           getEnvInt("SPORTLIST_RETRIES", 2),
		RetryBackoff:      getEnvDuration("SPORTLIST_RETRY_BACKOFF", time.Second),
		RequestsPerSecond: getEnvInt("SPORTLIST_REQUESTS_PER_SECOND", 5),
		HostConcurrency:   getEnvInt("SPORTLIST_HOST_CONCURRENCY", 4),
		PageCacheTTL:      getEnvDuration("SPORTLIST_PAGE_CACHE_TTL", 5*time.Minute),
		Workers:           getEnvInt("SPORTLIST_WORKERS", 4),
		RunTimeout:        getEnvDuration("SPORTLIST_RUN_TIMEOUT", 10*time.Minute),
		LogLevel:          getEnv("SPORTLIST_LOG_LEVEL", "info"),
		LogJSON:           getEnvBool("SPORTLIST_LOG_JSON", false),
		SafeLogs:          getEnvBool("SPORTLIST_SAFE_LOGS", false),
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.HostConcurrency <= 0 {
		c.HostConcurrency = 4
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	if c.RelayRPS <= 0 {
		c.RelayRPS = 2
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
