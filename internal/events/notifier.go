// Package events announces committed catalog changes on the message broker.
// Publishing is best effort: failures are logged and counted, never returned.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	catalogevents "github.com/abgdnv/gocatalog/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

const defaultPublishTimeout = 5 * time.Second

// Notifier publishes catalog events through a messaging.Publisher.
type Notifier struct {
	publisher messaging.Publisher
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
	published metric.Int64Counter
}

// NewNotifier creates a Notifier. A zero timeout falls back to five seconds.
func NewNotifier(publisher messaging.Publisher, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	published, err := otel.Meter("github.com/abgdnv/gocatalog/internal/events").Int64Counter(
		"catalog_events_published",
		metric.WithDescription("Catalog events handed to the broker, by subject and outcome."),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_events_published counter: %v", err))
	}
	return &Notifier{
		publisher: publisher,
		logger:    logger.With("component", "notifier"),
		timeout:   timeout,
		now:       time.Now,
		published: published,
	}
}

// ProductChanged announces a committed create, update or delete of p.
func (n *Notifier) ProductChanged(ctx context.Context, action catalogevents.ProductAction, p store.Product) {
	event := catalogevents.NewProductEvent(action, p.ID, p.Name, p.Category, p.Price, n.now().UTC())
	event.Carrier = traceCarrier(ctx)
	n.publish(ctx, event)
}

// StorageReset announces that startup discarded unreadable persisted content.
// Its signature matches the store reset hook.
func (n *Notifier) StorageReset(ctx context.Context, info store.ResetInfo) {
	reason := "unknown"
	if info.Reason != nil {
		reason = info.Reason.Error()
	}
	n.publish(ctx, catalogevents.NewStorageResetEvent(info.Medium, info.Quarantine, reason, info.At))
}

func (n *Notifier) publish(ctx context.Context, event messaging.Event) {
	// The change is already committed, so a caller that goes away must not abort the announcement.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	outcome := "ok"
	if err := n.publisher.Publish(ctx, event); err != nil {
		outcome = "error"
		level := slog.LevelWarn
		if errors.Is(err, messaging.ErrEncoding) {
			level = slog.LevelError
		}
		n.logger.Log(ctx, level, "Failed to publish catalog event", "subject", event.Subject(), "error", err)
	} else {
		n.logger.DebugContext(ctx, "Catalog event published", "subject", event.Subject())
	}
	n.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject", event.Subject()),
		attribute.String("outcome", outcome),
	))
}

func traceCarrier(ctx context.Context) map[string]string {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}
