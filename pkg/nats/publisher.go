package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

type NatsPublisher struct {
	js   jetstream.JetStream
	opts []jetstream.PublishOpt
}

// NewNatsPublisher creates a JetStream publisher. Publishing is retried
// while the stream is not yet available, according to cfg.
func NewNatsPublisher(js jetstream.JetStream, cfg config.RetryConfig) *NatsPublisher {
	var opts []jetstream.PublishOpt
	if cfg.MaxAttempts > 0 {
		opts = append(opts, jetstream.WithRetryAttempts(int(cfg.MaxAttempts)))
	}
	if cfg.InitialBackoff > 0 {
		opts = append(opts, jetstream.WithRetryWait(cfg.InitialBackoff))
	}
	return &NatsPublisher{js: js, opts: opts}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	opts := p.opts
	if identified, ok := event.(messaging.IdentifiedEvent); ok {
		opts = append(opts[:len(opts):len(opts)], jetstream.WithMsgID(identified.EventID()))
	}
	_, err = p.js.Publish(ctx, event.Subject(), data, opts...)
	return err
}
