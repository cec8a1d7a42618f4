package kafka

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/segmentio/kafka-go"
)

// EventPublisher adapts Producer to orders.Publisher.
type EventPublisher struct {
	P *Producer
}

func (e EventPublisher) Publish(_ context.Context, topic string, key []byte, env orders.Envelope) error {
	return e.P.Publish(topic, key, MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

// DecodeEnvelope parses a message value produced by EventPublisher.
func DecodeEnvelope(m kafka.Message) (orders.Envelope, error) {
	return UnwrapPayload[orders.Envelope](m.Value)
}
