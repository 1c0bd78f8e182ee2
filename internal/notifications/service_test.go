package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"drafter/internal/config"
	"drafter/internal/metadata"
	"drafter/internal/notifications"
	"drafter/internal/queue"
	"drafter/internal/services"
	"drafter/internal/testsupport"
)

type capturePublisher struct {
	events []notifications.Event
}

func (c *capturePublisher) Publish(ctx context.Context, event notifications.Event) error {
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) Close() {}

func newService(t *testing.T, opts ...testsupport.ConfigOption) (*notifications.Service, *capturePublisher) {
	t.Helper()
	svc, err := notifications.NewService(testsupport.NewConfig(t, opts...), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	capture := &capturePublisher{}
	svc.AddPublisher(capture)
	return svc, capture
}

func withNtfyEndpoint(url string) testsupport.ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = url
	}
}

func sampleJob(status queue.Status) *queue.Job {
	return &queue.Job{
		JobID:         "am9iLXJlZg",
		CorrelationID: "corr-1",
		Category:      "rvt",
		Status:        status,
		Progress:      100,
		Stage:         "translation",
		Sequence:      7,
	}
}

func TestJobUpdatedCarriesSequence(t *testing.T) {
	svc, capture := newService(t)
	defer svc.Close()

	job := sampleJob(queue.StatusInProgress)
	job.Progress = 35
	svc.JobUpdated(context.Background(), job)

	if len(capture.events) != 1 {
		t.Fatalf("published %d events, want 1", len(capture.events))
	}
	event := capture.events[0]
	if event.Type != notifications.EventJobUpdated {
		t.Fatalf("type = %s", event.Type)
	}
	if event.Sequence != 7 {
		t.Fatalf("sequence = %d, want 7", event.Sequence)
	}
	if event.JobID != job.JobID || event.Progress != 35 {
		t.Fatalf("event does not mirror job: %+v", event)
	}
	if event.ID == "" {
		t.Fatal("missing event id")
	}
}

func TestMetadataExtractedCarriesScore(t *testing.T) {
	svc, capture := newService(t)
	defer svc.Close()

	record := &metadata.Record{Score: metadata.Score{Overall: 0.82}}
	svc.MetadataExtracted(context.Background(), sampleJob(queue.StatusSuccess), record)

	if len(capture.events) != 1 {
		t.Fatalf("published %d events, want 1", len(capture.events))
	}
	event := capture.events[0]
	if event.Type != notifications.EventMetadataExtracted {
		t.Fatalf("type = %s", event.Type)
	}
	if event.OverallScore == nil || *event.OverallScore != 0.82 {
		t.Fatalf("overall score = %v", event.OverallScore)
	}
}

func TestTerminalFailureReachesNtfy(t *testing.T) {
	var messages []string
	var priorities []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		messages = append(messages, string(body))
		priorities = append(priorities, r.Header.Get("Priority"))
	}))
	defer server.Close()

	svc, _ := newService(t, withNtfyEndpoint(server.URL))
	defer svc.Close()

	job := sampleJob(queue.StatusFailed)
	job.ErrorKind = string(services.KindTransient)
	job.ErrorMessage = "retry budget exhausted"
	svc.JobUpdated(context.Background(), job)

	if len(messages) != 1 {
		t.Fatalf("ntfy received %d messages, want 1", len(messages))
	}
	if !strings.Contains(messages[0], "retry budget exhausted") {
		t.Fatalf("failure detail missing from %q", messages[0])
	}
	if priorities[0] != "high" {
		t.Fatalf("priority = %q, want high", priorities[0])
	}
}

func TestNonTerminalUpdatesSkipNtfy(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	svc, _ := newService(t, withNtfyEndpoint(server.URL))
	defer svc.Close()

	svc.JobUpdated(context.Background(), sampleJob(queue.StatusInProgress))
	if calls != 0 {
		t.Fatalf("in-progress update pushed %d ntfy messages", calls)
	}
}

func TestUnconfiguredServiceIsNoop(t *testing.T) {
	svc, err := notifications.NewService(testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Close()

	// No transports configured; must not panic or error.
	svc.JobUpdated(context.Background(), sampleJob(queue.StatusSuccess))
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
}
