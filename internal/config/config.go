package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "CREDISYNTH_CONFIG"

// Config is the resolved process configuration.
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	Generation Generation
	Breaker    Breaker
	Heuristic  Heuristic

	DatabaseURL    string
	AuditDisabled  bool
	AllowedOrigins []string
	JobWorkers     int
}

// Generation configures the model-backed report client.
type Generation struct {
	Disabled        bool
	FallbackOnError bool
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxTokens       int
	CallTimeout     time.Duration
	TotalBudget     time.Duration
	MaxAttempts     int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
}

// Breaker configures the circuit breaker around generation.
type Breaker struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Heuristic holds the thresholds of the deterministic report path.
type Heuristic struct {
	MaxDTI            float64
	MinResidualIncome float64
	MaxDSTI           float64
}

// keys maps viper keys to the environment variables that set them, in precedence order.
var keys = map[string][]string{
	"port":                          {"PORT"},
	"log.level":                     {"LOG_LEVEL"},
	"log.format":                    {"LOG_FORMAT"},
	"generation.disabled":           {"GENERATION_DISABLED", "MOCK_MODE"},
	"generation.fallback_on_error":  {"GENERATION_FALLBACK_ON_ERROR"},
	"generation.api_key":            {"OPENAI_API_KEY"},
	"generation.base_url":           {"OPENAI_BASE_URL"},
	"generation.model":              {"GENERATION_MODEL"},
	"generation.temperature":        {"GENERATION_TEMPERATURE"},
	"generation.max_tokens":         {"GENERATION_MAX_TOKENS"},
	"generation.call_timeout":       {"GENERATION_CALL_TIMEOUT"},
	"generation.total_budget":       {"GENERATION_TOTAL_BUDGET"},
	"generation.max_attempts":       {"GENERATION_MAX_ATTEMPTS"},
	"generation.backoff_initial":    {"GENERATION_BACKOFF_INITIAL"},
	"generation.backoff_max":        {"GENERATION_BACKOFF_MAX"},
	"breaker.failure_threshold":     {"BREAKER_FAILURE_THRESHOLD"},
	"breaker.cooldown":              {"BREAKER_COOLDOWN"},
	"heuristic.max_dti":             {"HEURISTIC_MAX_DTI"},
	"heuristic.min_residual_income": {"HEURISTIC_MIN_RESIDUAL_INCOME"},
	"heuristic.max_dsti":            {"HEURISTIC_MAX_DSTI"},
	"database.url":                  {"DATABASE_URL"},
	"audit.disabled":                {"AUDIT_DISABLED"},
	"server.allowed_origins":        {"ALLOWED_ORIGINS"},
	"jobs.workers":                  {"JOB_WORKERS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 7000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("generation.disabled", false)
	v.SetDefault("generation.fallback_on_error", false)
	v.SetDefault("generation.base_url", "https://api.openai.com/v1")
	v.SetDefault("generation.model", "gpt-4.1-mini")
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.max_tokens", 1500)
	v.SetDefault("generation.call_timeout", 8*time.Second)
	v.SetDefault("generation.total_budget", 12*time.Second)
	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.backoff_initial", 200*time.Millisecond)
	v.SetDefault("generation.backoff_max", 500*time.Millisecond)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("heuristic.max_dti", 0.35)
	v.SetDefault("heuristic.min_residual_income", 5000.0)
	v.SetDefault("heuristic.max_dsti", 0.35)
	v.SetDefault("database.url", "data/credisynth.db")
	v.SetDefault("audit.disabled", false)
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("jobs.workers", 0)
}

// Load resolves defaults, then the YAML file named by CREDISYNTH_CONFIG, then
// environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit config file path; empty skips the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, envs := range keys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	databaseURL := strings.TrimSpace(v.GetString("database.url"))
	if databaseURL == "" {
		databaseURL = "data/credisynth.db"
	}

	cfg := &Config{
		Port:      v.GetInt("port"),
		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		Generation: Generation{
			Disabled:        v.GetBool("generation.disabled"),
			FallbackOnError: v.GetBool("generation.fallback_on_error"),
			APIKey:          strings.TrimSpace(v.GetString("generation.api_key")),
			BaseURL:         strings.TrimSpace(v.GetString("generation.base_url")),
			Model:           strings.TrimSpace(v.GetString("generation.model")),
			Temperature:     v.GetFloat64("generation.temperature"),
			MaxTokens:       v.GetInt("generation.max_tokens"),
			CallTimeout:     v.GetDuration("generation.call_timeout"),
			TotalBudget:     v.GetDuration("generation.total_budget"),
			MaxAttempts:     v.GetInt("generation.max_attempts"),
			BackoffInitial:  v.GetDuration("generation.backoff_initial"),
			BackoffMax:      v.GetDuration("generation.backoff_max"),
		},
		Breaker: Breaker{
			FailureThreshold: v.GetUint32("breaker.failure_threshold"),
			Cooldown:         v.GetDuration("breaker.cooldown"),
		},
		Heuristic: Heuristic{
			MaxDTI:            v.GetFloat64("heuristic.max_dti"),
			MinResidualIncome: v.GetFloat64("heuristic.min_residual_income"),
			MaxDSTI:           v.GetFloat64("heuristic.max_dsti"),
		},
		DatabaseURL:    databaseURL,
		AuditDisabled:  v.GetBool("audit.disabled"),
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
		JobWorkers:     v.GetInt("jobs.workers"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log format %q must be json or text", c.LogFormat))
	}
	if c.Generation.MaxAttempts < 1 {
		errs = append(errs, errors.New("generation max attempts must be at least 1"))
	}
	if c.Generation.CallTimeout <= 0 || c.Generation.TotalBudget <= 0 {
		errs = append(errs, errors.New("generation timeouts must be positive"))
	}
	if c.Generation.BackoffInitial <= 0 || c.Generation.BackoffMax < c.Generation.BackoffInitial {
		errs = append(errs, errors.New("generation backoff must be positive with max >= initial"))
	}
	if c.Breaker.FailureThreshold == 0 {
		errs = append(errs, errors.New("breaker failure threshold must be at least 1"))
	}
	if c.Breaker.Cooldown <= 0 {
		errs = append(errs, errors.New("breaker cooldown must be positive"))
	}
	if c.Heuristic.MaxDTI <= 0 || c.Heuristic.MaxDSTI <= 0 || c.Heuristic.MinResidualIncome < 0 {
		errs = append(errs, errors.New("heuristic thresholds must be positive"))
	}
	if c.JobWorkers < 0 {
		errs = append(errs, errors.New("job workers must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// GenerationMode names the synthesis mode for health output.
func (c *Config) GenerationMode() string {
	switch {
	case c.Generation.Disabled:
		return "disabled"
	case c.Generation.APIKey == "":
		return "heuristic"
	}
	return "generative"
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
