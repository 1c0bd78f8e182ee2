package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	WebhookBind string `toml:"webhook_bind"`
}

// Provider contains configuration for the remote conversion service.
type Provider struct {
	BaseURL        string `toml:"base_url"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	WebhookSecret  string `toml:"webhook_secret"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Reference contains key material for opaque reference handling.
type Reference struct {
	// EncryptionKey is a 64-char hex string decoding to 32 bytes (AES-256).
	EncryptionKey string `toml:"encryption_key"`
	SigningKey    string `toml:"signing_key"`
	SignedTTL     int    `toml:"signed_ttl_seconds"`
}

// Translation contains retry, backoff, polling, and circuit breaker policy.
type Translation struct {
	MaxRetries         int     `toml:"max_retries"`
	MaxConcurrentPolls int     `toml:"max_concurrent_polls"`
	PollIntervalMin    int     `toml:"poll_interval_min"`
	PollIntervalMax    int     `toml:"poll_interval_max"`
	BackoffFactor      float64 `toml:"backoff_factor"`
	CircuitThreshold   int     `toml:"circuit_threshold"`
	CircuitWindow      int     `toml:"circuit_window_seconds"`
	CircuitCooldown    int     `toml:"circuit_cooldown_seconds"`
	LeaseGrace         int     `toml:"lease_grace_seconds"`
	// AuthoringTimeout and ExchangeTimeout cap total translation duration
	// per input category before a job is moved to timeout.
	AuthoringTimeout int `toml:"authoring_timeout_seconds"`
	ExchangeTimeout  int `toml:"exchange_timeout_seconds"`
}

// Scoring contains tunable thresholds for metadata quality scoring.
type Scoring struct {
	// DetailCeiling is the property-per-element count treated as full detail.
	DetailCeiling float64 `toml:"detail_ceiling"`
	// DeepHierarchyDepth is the depth beyond which organization is penalized.
	DeepHierarchyDepth  int     `toml:"deep_hierarchy_depth"`
	LowScoreThreshold   float64 `toml:"low_score_threshold"`
	RecommendationLimit int     `toml:"recommendation_limit"`
}

// Notifications contains event publishing configuration.
type Notifications struct {
	NatsURL        string `toml:"nats_url"`
	SubjectPrefix  string `toml:"subject_prefix"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Terminal       bool   `toml:"terminal"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	LeaseSweepInterval int `toml:"lease_sweep_interval"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for drafter.
//
// Sections by subsystem:
//   - Paths: data/log directories and webhook bind address
//   - Provider: remote conversion service connection and webhook secret
//   - Reference: encryption and signing keys for opaque references
//   - Translation: retry/backoff/poll/circuit-breaker policy
//   - Scoring: metadata quality scoring thresholds
//   - Notifications: NATS event bus and ntfy push settings
//   - Workflow: daemon intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Provider      Provider      `toml:"provider"`
	Reference     Reference     `toml:"reference"`
	Translation   Translation   `toml:"translation"`
	Scoring       Scoring       `toml:"scoring"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/drafter/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("drafter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DRAFTER_PROVIDER_CLIENT_ID", &c.Provider.ClientID},
		{"DRAFTER_PROVIDER_CLIENT_SECRET", &c.Provider.ClientSecret},
		{"DRAFTER_WEBHOOK_SECRET", &c.Provider.WebhookSecret},
		{"DRAFTER_ENCRYPTION_KEY", &c.Reference.EncryptionKey},
		{"DRAFTER_SIGNING_KEY", &c.Reference.SigningKey},
		{"DRAFTER_NATS_URL", &c.Notifications.NatsURL},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
