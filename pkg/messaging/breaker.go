package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// BreakerPublisher wraps a Publisher in a circuit breaker so a broker outage
// fails fast instead of stalling every publish on the dial timeout.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher returns a Publisher guarded by a circuit breaker configured from cfg.
// onStateChange, when not nil, is called on every breaker transition.
func NewBreakerPublisher(name string, next Publisher, cfg config.CircuitBreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *BreakerPublisher {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.Requests)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			// Encoding failures are bugs in the event, not broker failures.
			return err == nil || errors.Is(err, ErrEncoding)
		},
		OnStateChange: onStateChange,
	}
	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](st),
	}
}

// ErrEncoding marks an event whose payload could not be produced.
var ErrEncoding = errors.New("event encoding failed")

func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Subject(), err)
	}
	return nil
}

// State reports the current breaker state.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}
