// Package daemonrun wires the daemon's dependencies together and runs it
// until the process receives a termination signal. Both the CLI daemon
// command and the standalone drafterd binary share this bootstrap.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"drafter/internal/api"
	"drafter/internal/config"
	"drafter/internal/daemon"
	"drafter/internal/logging"
	"drafter/internal/notifications"
	"drafter/internal/queue"
	"drafter/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

// Run starts the drafter daemon runtime loop and blocks until the context
// is cancelled or a SIGINT/SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	notifier, err := notifications.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("init notifications: %w", err)
	}
	defer notifier.Close()

	manager, err := workflow.NewManager(cfg, store, notifier, logger)
	if err != nil {
		return fmt.Errorf("init workflow: %w", err)
	}
	engine := api.NewEngine(cfg, store, manager, logger)

	d, err := daemon.New(cfg, store, logger, manager, engine)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("drafterd shutting down")
	d.Stop()
	return nil
}
