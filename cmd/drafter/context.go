package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"drafter/internal/api"
	"drafter/internal/config"
	"drafter/internal/notifications"
	"drafter/internal/queue"
	"drafter/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withEngine opens the job store and builds an engine façade around it for
// the duration of fn. The workflow manager is constructed but never started;
// commands only need the store-backed operations.
func (c *commandContext) withEngine(fn func(*api.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, err := notifications.NewService(cfg, nil)
	if err != nil {
		return err
	}
	defer notifier.Close()

	manager, err := workflow.NewManager(cfg, store, notifier, nil)
	if err != nil {
		return err
	}
	return fn(api.NewEngine(cfg, store, manager, nil))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
