package events

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// ErrPublisherUnavailable is returned while the breaker is open and events are
// being dropped without contacting the brokers.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// BreakerPublisher stops calling a failing broker after consecutive errors so
// cart writes do not each wait out a write timeout.
type BreakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	OnStateChange    func(name string, from, to gobreaker.State)
}

func NewBreakerPublisher(next Publisher, s BreakerSettings) *BreakerPublisher {
	if s.Name == "" {
		s.Name = "cart-events"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	threshold := s.FailureThreshold

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: s.OnStateChange,
	})
	return &BreakerPublisher{next: next, cb: cb}
}

func (b *BreakerPublisher) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.PublishCartUpdated(ctx, cart)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrPublisherUnavailable, err)
	}
	return err
}

// State reports the breaker state, mainly for logging.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerPublisher) Close() error {
	return b.next.Close()
}
