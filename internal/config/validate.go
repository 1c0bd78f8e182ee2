package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateReference(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateBind(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/drafter/config.toml"
		}
		return fmt.Errorf("provider.base_url is required. Edit %s (create with 'drafter config init')", defaultPath)
	}
	if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" {
		return errors.New("provider.client_id and provider.client_secret are required. Set DRAFTER_PROVIDER_CLIENT_ID / DRAFTER_PROVIDER_CLIENT_SECRET or edit the config file")
	}
	if c.Provider.WebhookSecret == "" {
		return errors.New("provider.webhook_secret is required to verify inbound status notifications")
	}
	return nil
}

func (c *Config) validateReference() error {
	if c.Reference.EncryptionKey == "" {
		return errors.New("reference.encryption_key is required. Set DRAFTER_ENCRYPTION_KEY or edit the config file")
	}
	key, err := hex.DecodeString(c.Reference.EncryptionKey)
	if err != nil {
		return fmt.Errorf("reference.encryption_key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("reference.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	if c.Reference.SigningKey == "" {
		return errors.New("reference.signing_key is required. Set DRAFTER_SIGNING_KEY or edit the config file")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	t := c.Translation
	if t.PollIntervalMin > t.PollIntervalMax {
		return errors.New("translation.poll_interval_min must not exceed translation.poll_interval_max")
	}
	if t.BackoffFactor <= 1 {
		return errors.New("translation.backoff_factor must be greater than 1")
	}
	return nil
}

func (c *Config) validateBind() error {
	if _, _, err := net.SplitHostPort(c.Paths.WebhookBind); err != nil {
		return fmt.Errorf("paths.webhook_bind must be host:port: %w", err)
	}
	return nil
}

// EncryptionKeyBytes returns the decoded AES key. Validate must have passed.
func (c *Config) EncryptionKeyBytes() []byte {
	key, _ := hex.DecodeString(c.Reference.EncryptionKey)
	return key
}
