package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"drafter/internal/api"
	"drafter/internal/config"
	"drafter/internal/daemon"
	"drafter/internal/notifications"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/testsupport"
	"drafter/internal/workflow"
)

type idleProvider struct{}

func (idleProvider) Submit(ctx context.Context, req provider.SubmitRequest) (*provider.SubmitResponse, error) {
	return &provider.SubmitResponse{Result: "created", JobID: "prov-1"}, nil
}

func (idleProvider) FetchStatus(ctx context.Context, urn string) (*provider.StatusReport, error) {
	return &provider.StatusReport{State: provider.StateInProgress, Progress: "5% complete"}, nil
}

func (idleProvider) FetchManifest(ctx context.Context, urn string) (*provider.Manifest, error) {
	return &provider.Manifest{URN: urn, Status: "success"}, nil
}

func (idleProvider) FetchHierarchy(ctx context.Context, urn string) (*provider.Hierarchy, error) {
	return &provider.Hierarchy{URN: urn}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *queue.Store) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	notifier, err := notifications.NewService(cfg, nil)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	manager, err := workflow.NewManagerWithProvider(cfg, store, notifier, idleProvider{}, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	engine := api.NewEngine(cfg, store, manager, nil)
	d, err := daemon.New(cfg, store, nil, manager, engine)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastIntervals())
	d, _ := newDaemon(t, cfg)
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || status.QueueDBPath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastIntervals())
	first, _ := newDaemon(t, cfg)
	t.Cleanup(func() { first.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(first.Stop)

	// Same lock path, different listener so only the flock can conflict.
	second := *cfg
	second.Paths.WebhookBind = "127.0.0.1:0"
	other, _ := newDaemon(t, &second)
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected second instance to be rejected")
	}
}

func TestDaemonServesHealthAndWebhook(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastIntervals())
	d, store := newDaemon(t, cfg)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.Addr()
	if addr == "" {
		t.Fatal("expected bound webhook address")
	}

	testsupport.NewJob(t, store, "bucket/tower.rvt")

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	var counts map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if counts["total"] < 1 {
		t.Fatalf("expected at least one job, got %+v", counts)
	}

	status, err := http.Get(fmt.Sprintf("http://%s/api/jobs/%s", addr, "missing"))
	if err != nil {
		t.Fatalf("job request: %v", err)
	}
	defer status.Body.Close()
	if status.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", status.StatusCode)
	}

	// Unsigned webhook deliveries are refused without touching the queue.
	hook, err := http.Post(
		fmt.Sprintf("http://%s%s", addr, daemon.WebhookPath),
		"application/json",
		strings.NewReader(`{"jobId":"missing","status":"success","progress":100}`),
	)
	if err != nil {
		t.Fatalf("webhook request: %v", err)
	}
	defer hook.Body.Close()
	if hook.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook status = %d", hook.StatusCode)
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastIntervals())
	d, _ := newDaemon(t, cfg)
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()
	d.Stop()

	// The released lock lets a restart succeed.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	d.Stop()
}
