// Package kafkaclient wraps segmentio/kafka-go with a channel based consumer
// and a JSON producer.
package kafkaclient

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader defines the interface for a Kafka message reader.
// This allows for easy mocking in unit tests.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// retryDelay spaces out reads after a broker error.
var retryDelay = time.Second

// KafkaConsumer fetches messages into a channel and commits them only when
// asked, so a message is redelivered if its handler never finished.
type KafkaConsumer struct {
	reader   KafkaReader
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	messages chan kafka.Message

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newConsumer(reader KafkaReader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		doneChan: make(chan struct{}),
		messages: make(chan kafka.Message),
	}
}

// NewKafkaConsumer creates a consumer in groupID reading topic.
func NewKafkaConsumer(brokers []string, topic, groupID string) (*KafkaConsumer, error) {
	if len(brokers) == 0 || topic == "" || groupID == "" {
		return nil, errors.New("kafkaclient: brokers, topic and group id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
		// Offsets are committed explicitly through CommitOffset.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newConsumer(reader), nil
}

// Messages is closed once the consume loop exits.
func (kc *KafkaConsumer) Messages() <-chan kafka.Message {
	return kc.messages
}

func (kc *KafkaConsumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	log.Printf("Committing offset for topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
	return kc.reader.CommitMessages(ctx, msg)
}

// StartConsuming runs the fetch loop until ctx is cancelled, Stop is called
// or the reader is closed.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	kc.mu.Lock()
	kc.cancel = cancel
	kc.mu.Unlock()

	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messages)
		defer cancel()

		log.Println("Starting Kafka consumer loop...")
		for {
			select {
			case <-ctx.Done():
				log.Println("Context canceled, stopping consumer loop.")
				return
			case <-kc.doneChan:
				log.Println("Shutdown signal received, stopping consumer loop.")
				return
			default:
			}

			msg, err := kc.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				log.Printf("Error reading message: %v", err)
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					return
				case <-kc.doneChan:
					return
				}
				continue
			}

			select {
			case kc.messages <- msg:
				log.Printf("Message received: topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
			case <-ctx.Done():
				return
			case <-kc.doneChan:
				return
			}
		}
	}()
}

// Stop ends the loop and closes the reader. It is safe to call more than once.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		log.Println("Attempting to stop Kafka consumer...")
		close(kc.doneChan)
		kc.mu.Lock()
		if kc.cancel != nil {
			kc.cancel() // unblocks a pending fetch
		}
		kc.mu.Unlock()
		kc.wg.Wait()
		if err := kc.reader.Close(); err != nil {
			log.Printf("Failed to close Kafka reader: %v", err)
		}
		log.Println("Kafka consumer stopped gracefully.")
	})
}
