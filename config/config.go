package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds probe configuration.
type Config struct {
	Targets          []string
	TargetsFile      string
	Timeout          time.Duration
	DiscoveryTimeout time.Duration
	SampleSize       int
	PageSize         int
	DedupeMaxSize    int
	BatchSize        int
	OutputFile       string
	OutputFormat     string // console, json, or csv
	UserAgent        string
	AcceptLanguage   string
	APIBaseURL       string
	SiteID           string
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns sensible defaults for a probe run.
func DefaultConfig() *Config {
	return &Config{
		Targets:          []string{"all"},
		Timeout:          10 * time.Second,
		DiscoveryTimeout: 5 * time.Second,
		SampleSize:       5,
		PageSize:         20,
		DedupeMaxSize:    10000,
		BatchSize:        64,
		OutputFormat:     "console",
		UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:   "es-CL,es;q=0.9,en;q=0.8",
		APIBaseURL:       "https://api.mercadolibre.com",
		SiteID:           "MLC",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive")
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	switch c.OutputFormat {
	case "console", "json", "csv":
	default:
		return fmt.Errorf("output format must be console, json, or csv")
	}
	if c.OutputFormat == "csv" && c.OutputFile == "" {
		return fmt.Errorf("csv output requires an output file")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base URL cannot be empty")
	}
	if c.SiteID == "" {
		return fmt.Errorf("site id cannot be empty")
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a Go duration ("10s") when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overrides cfg with PROBE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if value, ok := EnvString("PROBE_TARGETS"); ok {
		cfg.Targets = splitList(value)
	}
	if value, ok := EnvString("PROBE_TARGETS_FILE"); ok {
		cfg.TargetsFile = value
	}
	if value, ok, err := EnvDuration("PROBE_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := EnvDuration("PROBE_DISCOVERY_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.DiscoveryTimeout = value
	}
	if value, ok, err := EnvInt("PROBE_SAMPLE"); err != nil {
		return err
	} else if ok {
		cfg.SampleSize = value
	}
	if value, ok := EnvString("PROBE_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := EnvString("PROBE_FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(value)
	}
	if value, ok := EnvString("PROBE_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok := EnvString("PROBE_API_BASE_URL"); ok {
		cfg.APIBaseURL = value
	}
	if value, ok := EnvString("PROBE_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
