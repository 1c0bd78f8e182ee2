package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeTranslation()
	c.normalizeScoring()
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.WebhookBind = strings.TrimSpace(c.Paths.WebhookBind)
	if c.Paths.WebhookBind == "" {
		c.Paths.WebhookBind = defaultWebhookBind
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.ClientID = strings.TrimSpace(c.Provider.ClientID)
	c.Provider.ClientSecret = strings.TrimSpace(c.Provider.ClientSecret)
	c.Provider.WebhookSecret = strings.TrimSpace(c.Provider.WebhookSecret)
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = defaultProviderTimeout
	}
	c.Reference.EncryptionKey = strings.TrimSpace(c.Reference.EncryptionKey)
	c.Reference.SigningKey = strings.TrimSpace(c.Reference.SigningKey)
	if c.Reference.SignedTTL <= 0 {
		c.Reference.SignedTTL = defaultSignedTTL
	}
}

func (c *Config) normalizeTranslation() {
	t := &c.Translation
	if t.MaxRetries < 0 {
		t.MaxRetries = defaultMaxRetries
	}
	if t.MaxConcurrentPolls <= 0 {
		t.MaxConcurrentPolls = defaultMaxConcurrentPolls
	}
	if t.PollIntervalMin <= 0 {
		t.PollIntervalMin = defaultPollIntervalMin
	}
	if t.PollIntervalMax <= 0 {
		t.PollIntervalMax = defaultPollIntervalMax
	}
	if t.PollIntervalMax < t.PollIntervalMin {
		t.PollIntervalMax = t.PollIntervalMin
	}
	if t.BackoffFactor <= 1 {
		t.BackoffFactor = defaultBackoffFactor
	}
	if t.CircuitThreshold <= 0 {
		t.CircuitThreshold = defaultCircuitThreshold
	}
	if t.CircuitWindow <= 0 {
		t.CircuitWindow = defaultCircuitWindow
	}
	if t.CircuitCooldown <= 0 {
		t.CircuitCooldown = defaultCircuitCooldown
	}
	if t.LeaseGrace <= 0 {
		t.LeaseGrace = defaultLeaseGrace
	}
	if t.AuthoringTimeout <= 0 {
		t.AuthoringTimeout = defaultAuthoringTimeout
	}
	if t.ExchangeTimeout <= 0 {
		t.ExchangeTimeout = defaultExchangeTimeout
	}
}

func (c *Config) normalizeScoring() {
	if c.Scoring.DetailCeiling <= 0 {
		c.Scoring.DetailCeiling = defaultDetailCeiling
	}
	if c.Scoring.DeepHierarchyDepth <= 0 {
		c.Scoring.DeepHierarchyDepth = defaultDeepHierarchy
	}
	if c.Scoring.LowScoreThreshold <= 0 || c.Scoring.LowScoreThreshold > 1 {
		c.Scoring.LowScoreThreshold = defaultLowScore
	}
	if c.Scoring.RecommendationLimit <= 0 {
		c.Scoring.RecommendationLimit = defaultRecommendations
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NatsURL = strings.TrimSpace(c.Notifications.NatsURL)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.SubjectPrefix = strings.Trim(strings.TrimSpace(c.Notifications.SubjectPrefix), ".")
	if c.Notifications.SubjectPrefix == "" {
		c.Notifications.SubjectPrefix = defaultSubjectPrefix
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetry
	}
	if c.Workflow.LeaseSweepInterval <= 0 {
		c.Workflow.LeaseSweepInterval = defaultLeaseSweep
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
