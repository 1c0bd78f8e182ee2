package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"drafter/internal/queue"
)

const userAgent = "Drafter-Go/0.1.0"

type ntfyPayload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// ntfyNotifier pushes human-facing messages for terminal jobs.
type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func newNtfyNotifier(endpoint string, timeout time.Duration) *ntfyNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyNotifier) JobCompleted(ctx context.Context, job *queue.Job, score *float64) error {
	message := fmt.Sprintf("Translation complete: %s (%s)", job.JobID, job.Category)
	if score != nil {
		message = fmt.Sprintf("%s\nQuality score: %.2f", message, *score)
	}
	return n.send(ctx, ntfyPayload{
		title:   "Drafter - Complete",
		message: message,
		tags:    []string{"drafter", "translation", "completed"},
	})
}

func (n *ntfyNotifier) JobFailed(ctx context.Context, job *queue.Job) error {
	detail := strings.TrimSpace(job.ErrorMessage)
	if detail == "" {
		detail = "unknown failure"
	}
	return n.send(ctx, ntfyPayload{
		title:    "Drafter - Failed",
		message:  fmt.Sprintf("Translation failed: %s\n%s", job.JobID, detail),
		tags:     []string{"drafter", "translation", "failed"},
		priority: "high",
	})
}

func (n *ntfyNotifier) JobTimedOut(ctx context.Context, job *queue.Job) error {
	return n.send(ctx, ntfyPayload{
		title:    "Drafter - Timed Out",
		message:  fmt.Sprintf("Translation timed out: %s (%s)", job.JobID, job.Category),
		tags:     []string{"drafter", "translation", "timeout"},
		priority: "high",
	})
}

func (n *ntfyNotifier) Test(ctx context.Context) error {
	return n.send(ctx, ntfyPayload{
		title:    "Drafter - Test",
		message:  "Notification system test",
		tags:     []string{"drafter", "test"},
		priority: "low",
	})
}

func (n *ntfyNotifier) send(ctx context.Context, data ntfyPayload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
