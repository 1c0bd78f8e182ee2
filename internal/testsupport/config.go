package testsupport

import (
	"path/filepath"
	"testing"

	"drafter/internal/config"
)

// TestEncryptionKey is a fixed 32-byte AES key (hex) used across tests.
const TestEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and the minimum provider/reference settings a component needs to start.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WebhookBind = "127.0.0.1:0"
	cfg.Provider.BaseURL = "https://provider.test/api"
	cfg.Provider.ClientID = "test-client"
	cfg.Provider.ClientSecret = "test-secret"
	cfg.Provider.WebhookSecret = "test-webhook-secret"
	cfg.Reference.EncryptionKey = TestEncryptionKey
	cfg.Reference.SigningKey = "test-signing-key"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithProviderURL points the provider client at a test server.
func WithProviderURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Provider.BaseURL = url
	}
}

// WithMaxRetries overrides the retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Translation.MaxRetries = n
	}
}

// WithFastIntervals shrinks every workflow timing to one second so
// integration tests finish quickly.
func WithFastIntervals() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Translation.PollIntervalMin = 1
		cfg.Translation.PollIntervalMax = 2
		cfg.Workflow.QueuePollInterval = 1
		cfg.Workflow.ErrorRetryInterval = 1
		cfg.Workflow.LeaseSweepInterval = 1
	}
}
