package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KnownProviders lists every provider name this build can route to.
var KnownProviders = []string{"anthropic", "gemini", "perplexity", "openai"}

// Config is the complete application configuration, loaded once at startup.
// The router consumes it; it never reads configuration sources itself.
type Config struct {
	Server      ServerConfig
	Router      RouterConfig
	Providers   map[string]ProviderConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	LogLevel    string
	Environment string
}

// ServerConfig holds HTTP server settings for the status API.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RouterConfig holds the routing knobs shared across providers.
type RouterConfig struct {
	// Priority is the ordered provider list, parsed from LLM_PRIORITY.
	Priority []string

	// DryRun replaces every backend call with deterministic mock output.
	// Defaults to true so a fresh checkout never spends money.
	DryRun bool

	// DailyBudgetUSD is the process-wide daily cost ceiling. Zero permits
	// no paid calls.
	DailyBudgetUSD float64

	// CallTimeout bounds each backend invocation.
	CallTimeout time.Duration

	// BreakerThreshold and BreakerCooldown tune the per-provider circuit breaker.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// RateWindowCap bounds stored timestamps per provider rate window.
	RateWindowCap int

	// JournalCapacity bounds the in-memory usage journal.
	JournalCapacity int
}

// ProviderConfig holds one provider's settings. A provider is enabled only
// when its API key is present (and, for openai, when explicitly switched on).
type ProviderConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	MaxTokens          int
	RateLimitPerMinute int
	CostPerKiloTokens  float64
	Timeout            time.Duration
	MaxRetries         int
	Enabled            bool
	SearchOnly         bool
	TaskAffinity       []string
}

// DatabaseConfig holds the optional Postgres usage sink settings.
// Flushing is disabled when URL is empty.
type DatabaseConfig struct {
	URL           string
	MaxOpenConns  int
	MaxIdleConns  int
	FlushInterval time.Duration
}

// AuthConfig holds the status API bearer-token settings. Auth is disabled
// when the secret is empty.
type AuthConfig struct {
	JWTSecret string
}

// New loads configuration from the environment, applying the same defaults
// the original deployment shipped with.
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Router: RouterConfig{
			Priority:         parsePriority(getEnv("LLM_PRIORITY", "anthropic,gemini,perplexity")),
			DryRun:           getEnvAsBool("DRY_RUN", true),
			DailyBudgetUSD:   getEnvAsFloat("DAILY_BUDGET_USD", 10.0),
			CallTimeout:      getEnvAsDuration("LLM_CALL_TIMEOUT", 60*time.Second),
			BreakerThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			BreakerCooldown:  getEnvAsDuration("BREAKER_COOLDOWN", 5*time.Minute),
			RateWindowCap:    getEnvAsInt("RATE_WINDOW_CAP", 100),
			JournalCapacity:  getEnvAsInt("USAGE_JOURNAL_CAPACITY", 1000),
		},
		Providers: loadProviderConfigs(),
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			MaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			FlushInterval: getEnvAsDuration("USAGE_FLUSH_INTERVAL", time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("API_JWT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate fails fast on configuration that would otherwise surface as
// call-time errors.
func (c *Config) Validate() error {
	if len(c.Router.Priority) == 0 {
		return fmt.Errorf("provider priority list is empty")
	}
	for _, name := range c.Router.Priority {
		if !isKnownProvider(name) {
			return fmt.Errorf("unknown provider %q in LLM_PRIORITY", name)
		}
	}
	if c.Router.DailyBudgetUSD < 0 {
		return fmt.Errorf("daily budget cannot be negative")
	}
	if c.Router.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	if !c.Router.DryRun && !c.anyProviderEnabled() {
		return fmt.Errorf("no provider API key configured and dry-run is off")
	}
	return nil
}

func (c *Config) anyProviderEnabled() bool {
	for _, p := range c.Providers {
		if p.Enabled {
			return true
		}
	}
	return false
}

func loadProviderConfigs() map[string]ProviderConfig {
	openaiEnabled := getEnvAsBool("OPENAI_ENABLED", false)

	return map[string]ProviderConfig{
		"anthropic": {
			APIKey:             getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:            getEnv("ANTHROPIC_BASE_URL", ""),
			Model:              getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:          getEnvAsInt("ANTHROPIC_MAX_TOKENS", 4096),
			RateLimitPerMinute: getEnvAsInt("ANTHROPIC_RATE_LIMIT_PER_MINUTE", 50),
			CostPerKiloTokens:  getEnvAsFloat("ANTHROPIC_COST_PER_1K_TOKENS", 0.015),
			Timeout:            getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
			MaxRetries:         getEnvAsInt("ANTHROPIC_MAX_RETRIES", 2),
			Enabled:            os.Getenv("ANTHROPIC_API_KEY") != "",
		},
		"gemini": {
			APIKey:             getEnv("GEMINI_API_KEY", ""),
			BaseURL:            getEnv("GEMINI_BASE_URL", ""),
			Model:              getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
			MaxTokens:          getEnvAsInt("GEMINI_MAX_TOKENS", 8192),
			RateLimitPerMinute: getEnvAsInt("GEMINI_RATE_LIMIT_PER_MINUTE", 60),
			CostPerKiloTokens:  getEnvAsFloat("GEMINI_COST_PER_1K_TOKENS", 0.005),
			Timeout:            getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			MaxRetries:         getEnvAsInt("GEMINI_MAX_RETRIES", 2),
			Enabled:            os.Getenv("GEMINI_API_KEY") != "",
		},
		"perplexity": {
			APIKey:             getEnv("PERPLEXITY_API_KEY", ""),
			BaseURL:            getEnv("PERPLEXITY_BASE_URL", ""),
			Model:              getEnv("PERPLEXITY_MODEL", "llama-3.1-sonar-large-128k-online"),
			MaxTokens:          getEnvAsInt("PERPLEXITY_MAX_TOKENS", 4096),
			RateLimitPerMinute: getEnvAsInt("PERPLEXITY_RATE_LIMIT_PER_MINUTE", 20),
			CostPerKiloTokens:  getEnvAsFloat("PERPLEXITY_COST_PER_1K_TOKENS", 0.001),
			Timeout:            getEnvAsDuration("PERPLEXITY_TIMEOUT", 60*time.Second),
			MaxRetries:         getEnvAsInt("PERPLEXITY_MAX_RETRIES", 2),
			Enabled:            os.Getenv("PERPLEXITY_API_KEY") != "",
			SearchOnly:         getEnvAsBool("PERPLEXITY_SEARCH_ONLY", false),
			TaskAffinity:       []string{"search"},
		},
		"openai": {
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			Model:              getEnv("OPENAI_MODEL", "gpt-4"),
			MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 4096),
			RateLimitPerMinute: getEnvAsInt("OPENAI_RATE_LIMIT_PER_MINUTE", 60),
			CostPerKiloTokens:  getEnvAsFloat("OPENAI_COST_PER_1K_TOKENS", 0.03),
			Timeout:            getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:         getEnvAsInt("OPENAI_MAX_RETRIES", 2),
			// OpenAI stays off unless explicitly switched on.
			Enabled: openaiEnabled && os.Getenv("OPENAI_API_KEY") != "",
		},
	}
}

// parsePriority splits a comma-separated priority list, trimming whitespace
// and dropping empty entries.
func parsePriority(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, strings.ToLower(name))
		}
	}
	return out
}

func isKnownProvider(name string) bool {
	for _, known := range KnownProviders {
		if name == known {
			return true
		}
	}
	return false
}

// Address returns the HTTP server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
