package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher delivers events to one transport.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NatsPublisher publishes events as JSON on subjects derived from the
// configured prefix, e.g. drafter.job.updated.
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(url, prefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.prefix + "." + string(event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *NatsPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
