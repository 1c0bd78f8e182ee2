package workflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"drafter/internal/config"
	"drafter/internal/dispatch"
	"drafter/internal/logging"
	"drafter/internal/metadata"
	"drafter/internal/notifications"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/reference"
	"drafter/internal/retry"
	"drafter/internal/status"
)

// providerAPI is the full provider surface the workflow needs.
type providerAPI interface {
	Submit(ctx context.Context, req provider.SubmitRequest) (*provider.SubmitResponse, error)
	FetchStatus(ctx context.Context, urn string) (*provider.StatusReport, error)
	FetchManifest(ctx context.Context, urn string) (*provider.Manifest, error)
	FetchHierarchy(ctx context.Context, urn string) (*provider.Hierarchy, error)
}

// Manager owns the engine's background lanes.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	refs       *reference.Manager
	dispatcher *dispatch.Dispatcher
	poller     *status.Poller
	webhook    *status.Webhook
	extractor  *metadata.Extractor
	controller *retry.Controller
	notifier   *notifications.Service
	logger     *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the engine against the real provider client.
func NewManager(cfg *config.Config, store *queue.Store, notifier *notifications.Service, logger *slog.Logger) (*Manager, error) {
	return NewManagerWithProvider(cfg, store, notifier, provider.NewClient(cfg, logger), logger)
}

// NewManagerWithProvider wires the engine against a caller-supplied
// provider implementation, used by tests.
func NewManagerWithProvider(cfg *config.Config, store *queue.Store, notifier *notifications.Service, api providerAPI, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	refs, err := reference.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:          cfg,
		store:        store,
		refs:         refs,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
	}
	m.controller = retry.NewController(cfg, logger)
	m.dispatcher = dispatch.New(cfg, store, refs, api, logger)
	m.extractor = metadata.NewExtractor(cfg, store, api, logger)

	hooks := status.Hooks{Updated: m.onJobUpdated}
	m.poller = status.NewPoller(cfg, store, api, m.controller, hooks, logger)
	m.webhook = status.NewWebhook(cfg, store, m.poller, hooks, logger)
	return m, nil
}

// Dispatcher exposes job submission to the engine facade.
func (m *Manager) Dispatcher() *dispatch.Dispatcher { return m.dispatcher }

// Extractor exposes metadata extraction to the engine facade.
func (m *Manager) Extractor() *metadata.Extractor { return m.extractor }

// References exposes the reference manager to the engine facade.
func (m *Manager) References() *reference.Manager { return m.refs }

// Poller exposes poll scheduling to the engine facade.
func (m *Manager) Poller() *status.Poller { return m.poller }

// WebhookHandler returns the HTTP handler for provider callbacks.
func (m *Manager) WebhookHandler() http.Handler { return m.webhook }

// Start launches the background lanes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		m.dispatchLane(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		if err := m.poller.Run(runCtx); err != nil {
			m.logger.Error("poller stopped", logging.Args(logging.Error(err))...)
		}
	}()
	go func() {
		defer m.wg.Done()
		m.sweepLane(runCtx)
	}()

	m.logger.Info("workflow started")
	return nil
}

// Stop cancels the lanes and waits for them to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// onJobUpdated runs on every applied transition from either status
// channel: it fans the event out and triggers metadata extraction when
// a job reaches success.
func (m *Manager) onJobUpdated(ctx context.Context, job *queue.Job) {
	m.notifier.JobUpdated(ctx, job)
	if job.Status != queue.StatusSuccess {
		return
	}

	var record *metadata.Record
	err := m.controller.Do(ctx, "extract", func(ctx context.Context) error {
		extracted, err := m.extractor.Extract(ctx, job)
		if err == nil {
			record = extracted
		}
		return err
	})
	if err != nil {
		m.logger.Error("metadata extraction failed", logging.Args(
			logging.String(logging.FieldJobID, job.JobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-run extraction via the metadata endpoint"),
		)...)
		return
	}
	m.notifier.MetadataExtracted(ctx, job, record)
}
