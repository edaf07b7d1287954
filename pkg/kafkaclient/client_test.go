package kafkaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// mockReader simulates the kafka-go Reader for unit testing.
type mockReader struct {
	messages chan kafka.Message
	mu       sync.Mutex
	commits  []kafka.Message
	failures int
	closed   bool
}

func newMockReader(count int) *mockReader {
	mr := &mockReader{messages: make(chan kafka.Message, count)}
	for i := 0; i < count; i++ {
		mr.messages <- kafka.Message{
			Topic:  "trackbench.cleaned",
			Offset: int64(i),
			Value:  []byte(fmt.Sprintf("message-%d", i)),
		}
	}
	return mr
}

func (mr *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	mr.mu.Lock()
	if mr.failures > 0 {
		mr.failures--
		mr.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	mr.mu.Unlock()
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-mr.messages:
		return msg, nil
	}
}

func (mr *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.closed {
		return io.EOF
	}
	mr.commits = append(mr.commits, msgs...)
	return nil
}

func (mr *mockReader) Close() error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.closed = true
	return nil
}

func TestKafkaConsumer_ConsumeAndCommit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	retryDelay = 10 * time.Millisecond
	reader := newMockReader(3)
	reader.failures = 1
	consumer := newConsumer(reader)
	consumer.StartConsuming(ctx)

	for i := 0; i < 3; i++ {
		select {
		case msg := <-consumer.Messages():
			if want := fmt.Sprintf("message-%d", i); string(msg.Value) != want {
				t.Errorf("message %d = %q; want %q", i, msg.Value, want)
			}
			if err := consumer.CommitOffset(ctx, msg); err != nil {
				t.Errorf("CommitOffset failed: %v", err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for a message")
		}
	}
	consumer.Stop()
	consumer.Stop()

	if _, ok := <-consumer.Messages(); ok {
		t.Error("messages channel should be closed after Stop")
	}
	if len(reader.commits) != 3 || !reader.closed {
		t.Errorf("commits = %d, closed = %v", len(reader.commits), reader.closed)
	}
}

func TestKafkaConsumer_StopWhileWaiting(t *testing.T) {
	consumer := newConsumer(newMockReader(0))
	consumer.StartConsuming(context.Background())

	done := make(chan struct{})
	go func() {
		consumer.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop should not block on a pending fetch")
	}
}

func TestNewKafkaConsumer_Validates(t *testing.T) {
	if _, err := NewKafkaConsumer(nil, "topic", "group"); err == nil {
		t.Error("expected an error without brokers")
	}
	if _, err := NewProducer([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected an error without a topic")
	}
}

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (mw *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if mw.err != nil {
		return mw.err
	}
	mw.msgs = append(mw.msgs, msgs...)
	return nil
}

func (mw *mockWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &Producer{writer: w, topic: "trackbench.cleaned"}
	event := map[string]any{"protocol": "p2", "points": 12}
	if err := p.Publish(context.Background(), "run-1", event); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "run-1" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	var got map[string]any
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got["protocol"] != "p2" {
		t.Errorf("value = %s, err %v", w.msgs[0].Value, err)
	}

	w.err = errors.New("leader not available")
	if err := p.Publish(context.Background(), "run-1", event); err == nil {
		t.Error("expected the writer error to surface")
	}
}
