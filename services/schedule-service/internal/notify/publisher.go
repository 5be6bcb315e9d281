// Package notify publishes best-effort booking events for the external
// notification pipeline. Delivery is fire-and-forget from the engine's point
// of view: a failed publish is logged, never propagated to the mutation.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trimline-app/trimline/libs/kafkax"
)

const EventReservationCancelled = "reservation.cancelled.v1"

type CancellationEvent struct {
	ReservationID string `json:"reservation_id"`
	BarberID      string `json:"barber_id,omitempty"`
	CancelledBy   string `json:"cancelled_by"`
	Reason        string `json:"reason,omitempty"`
}

type Publisher struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewPublisher returns a nil-safe publisher. With no brokers configured it
// degrades to a no-op so local development does not require Kafka.
func NewPublisher(brokers, topic string, logger *slog.Logger) *Publisher {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 || topic == "" {
		logger.Warn("notification publisher disabled (no kafka brokers configured)")
		return &Publisher{logger: logger}
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  list,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &Publisher{writer: writer, topic: topic, logger: logger}
}

func (p *Publisher) ReservationCancelled(ctx context.Context, ev CancellationEvent) error {
	if p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.ReservationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(EventReservationCancelled)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() {
	if p.writer != nil {
		_ = p.writer.Close()
	}
}
