// Package service consumes "protocol cleaned" events from a message source
// (Kafka via pkg/kafkaclient) and hands them to a handler, committing each
// message only once its handler succeeded.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"trackbench/internal/models"
)

// Iterator decodes messages from a MessageIterator into T. It does not manage
// the lifecycle of the underlying source; callers start and stop their
// consumer outside.
type Iterator[T any] struct {
	msgIterator MessageIterator
	decode      DecodeFunc[T]
}

func NewIterator[T any](iterator MessageIterator, decode DecodeFunc[T]) *Iterator[T] {
	return &Iterator[T]{msgIterator: iterator, decode: decode}
}

// JSON decodes the message value as JSON.
func JSON[T any]() DecodeFunc[T] {
	return func(msg kafka.Message) (T, error) {
		var v T
		err := json.Unmarshal(msg.Value, &v)
		return v, err
	}
}

// CleanedEvents decodes and validates CleanedEvent messages.
func CleanedEvents(iterator MessageIterator) *Iterator[models.CleanedEvent] {
	decode := JSON[models.CleanedEvent]()
	return NewIterator(iterator, func(msg kafka.Message) (models.CleanedEvent, error) {
		ev, err := decode(msg)
		if err != nil {
			return ev, err
		}
		if !ev.Protocol.Valid() {
			return ev, fmt.Errorf("unknown protocol %q", ev.Protocol)
		}
		return ev, nil
	})
}

// Events streams decoded events until the message channel closes or ctx is
// cancelled. Messages that fail to decode are logged and skipped.
func (it *Iterator[T]) Events(ctx context.Context) <-chan *Event[T] {
	out := make(chan *Event[T])
	go func() {
		defer close(out)
		messages := it.msgIterator.Messages()
		for {
			var msg kafka.Message
			select {
			case m, ok := <-messages:
				if !ok {
					return
				}
				msg = m
			case <-ctx.Done():
				return
			}
			data, err := it.decode(msg)
			if err != nil {
				log.Printf("Error decoding message at offset %d: %v", msg.Offset, err)
				continue
			}
			select {
			case out <- &Event[T]{Data: data, Message: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Each runs handler on every event and commits the message after a
// successful run. Committing an offset also commits every earlier one on
// its partition, so once a handler fails on a partition nothing later on it
// is committed and the failed event is redelivered after a restart. It
// returns the number of events handled.
func (it *Iterator[T]) Each(ctx context.Context, handler HandlerFunc[T]) int {
	handled := 0
	failed := make(map[int]int64)
	for ev := range it.Events(ctx) {
		msg := ev.Message
		if err := handler(ctx, ev.Data); err != nil {
			log.Printf("Handler failed for partition %d offset %d: %v", msg.Partition, msg.Offset, err)
			if _, ok := failed[msg.Partition]; !ok {
				failed[msg.Partition] = msg.Offset
			}
			continue
		}
		handled++
		if at, ok := failed[msg.Partition]; ok {
			log.Printf("Not committing partition %d offset %d: offset %d is still pending", msg.Partition, msg.Offset, at)
			continue
		}
		if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
			log.Printf("Failed to commit offset: %v", err)
		}
	}
	return handled
}
