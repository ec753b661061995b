package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	DefaultTopic    = "cart-events"
	CartUpdatedType = "cart.updated"
)

// Publisher announces cart changes to downstream consumers.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	Close() error
}

// CartUpdated is the payload of a cart.updated message.
type CartUpdated struct {
	EventID      string              `json:"event_id"`
	EventType    string              `json:"event_type"`
	UserID       string              `json:"user_id"`
	Items        []domain.LineItem   `json:"items"`
	CostEstimate domain.CostEstimate `json:"cost_estimate"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
	// propagator injects the caller's trace context into message headers;
	// nil uses the process-wide propagator.
	propagator propagation.TextMapPropagator
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w)
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	event := CartUpdated{
		EventID:      uuid.NewString(),
		EventType:    CartUpdatedType,
		UserID:       cart.UserID,
		Items:        cart.Items,
		CostEstimate: cart.CostEstimate,
		OccurredAt:   p.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(cart.UserID), // user id keeps a user's events ordered
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(CartUpdatedType)},
		},
	}
	p.textMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish cart event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) textMapPropagator() propagation.TextMapPropagator {
	if p.propagator != nil {
		return p.propagator
	}
	return otel.GetTextMapPropagator()
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishCartUpdated(context.Context, *domain.Cart) error { return nil }

func (NoopPublisher) Close() error { return nil }

// New returns a Kafka publisher, or a NoopPublisher when brokers is empty.
func New(topic string, brokers []string) Publisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(topic, brokers...)
}
