package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/metadata"
	"drafter/internal/queue"
)

// Service fans lifecycle events out to the configured transports.
// Delivery is at-least-once and fire-and-forget: failures are logged,
// never returned to the workflow.
type Service struct {
	publishers []Publisher
	ntfy       *ntfyNotifier
	cfg        config.Notifications
	logger     *slog.Logger
}

// NewService wires the transports named in configuration. With neither
// NATS nor ntfy configured the service is a no-op.
func NewService(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{
		cfg:    cfg.Notifications,
		logger: logging.NewComponentLogger(logger, "notifications"),
	}

	if url := strings.TrimSpace(cfg.Notifications.NatsURL); url != "" {
		publisher, err := NewNatsPublisher(url, cfg.Notifications.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		svc.publishers = append(svc.publishers, publisher)
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		svc.ntfy = newNtfyNotifier(topic, time.Duration(cfg.Notifications.RequestTimeout)*time.Second)
	}
	return svc, nil
}

// AddPublisher registers an extra event transport.
func (s *Service) AddPublisher(publisher Publisher) {
	s.publishers = append(s.publishers, publisher)
}

// JobUpdated publishes a job.updated event and, for terminal states,
// the matching human notification.
func (s *Service) JobUpdated(ctx context.Context, job *queue.Job) {
	if s == nil || job == nil {
		return
	}
	s.publish(ctx, JobUpdatedEvent(job))

	if s.ntfy == nil || !job.IsTerminal() {
		return
	}
	var err error
	switch job.Status {
	case queue.StatusSuccess:
		if s.cfg.Terminal {
			err = s.ntfy.JobCompleted(ctx, job, nil)
		}
	case queue.StatusFailed:
		if s.cfg.Errors {
			err = s.ntfy.JobFailed(ctx, job)
		}
	case queue.StatusTimeout:
		if s.cfg.Errors {
			err = s.ntfy.JobTimedOut(ctx, job)
		}
	}
	if err != nil {
		s.logger.Warn("ntfy delivery failed", logging.Args(
			logging.String(logging.FieldJobID, job.JobID),
			logging.Error(err),
		)...)
	}
}

// MetadataExtracted publishes a metadata.extracted event.
func (s *Service) MetadataExtracted(ctx context.Context, job *queue.Job, record *metadata.Record) {
	if s == nil || job == nil || record == nil {
		return
	}
	s.publish(ctx, MetadataExtractedEvent(job, record))
}

// TestNotification exercises the human-facing channel.
func (s *Service) TestNotification(ctx context.Context) error {
	if s == nil || s.ntfy == nil {
		return nil
	}
	return s.ntfy.Test(ctx)
}

// Close drains the underlying transports.
func (s *Service) Close() {
	if s == nil {
		return
	}
	for _, publisher := range s.publishers {
		publisher.Close()
	}
}

func (s *Service) publish(ctx context.Context, event Event) {
	for _, publisher := range s.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed", logging.Args(
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.String(logging.FieldJobID, event.JobID),
				logging.Error(err),
			)...)
		}
	}
}
