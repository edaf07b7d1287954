package service

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageIterator defines the contract for consuming messages from a Kafka topic.
// It is satisfied by *kafkaclient.KafkaConsumer.
//
// Implementations are responsible for the lifecycle of the consumer connection.
type MessageIterator interface {
	// Messages returns a receive-only channel of Kafka messages. The channel
	// is closed by the implementation when the consumer is stopped.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges that a message has been successfully processed.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// DecodeFunc turns a message value into T.
type DecodeFunc[T any] func(msg kafka.Message) (T, error)

// HandlerFunc processes one decoded event. Returning an error leaves the
// message uncommitted.
type HandlerFunc[T any] func(ctx context.Context, data T) error

// Event pairs decoded data with the message it came from.
type Event[T any] struct {
	Data    T
	Message kafka.Message
}
