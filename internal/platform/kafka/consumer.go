// Package kafka wraps the franz-go client with the small publish/consume
// surface the import job pipeline needs. Delivery is at-least-once: offsets
// are only committed for records whose handler returned nil, so handlers
// must be idempotent.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the handler-facing view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning an error leaves the offset
// uncommitted so the message is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a consumer group over one topic.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	log     *slog.Logger
}

func NewConsumer(brokers []string, topic, group string, handler Handler, log *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, log: log}, nil
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var handled []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.log.Error("message handling failed, leaving uncommitted",
					"topic", record.Topic, "offset", record.Offset, "error", err)
				return
			}
			handled = append(handled, record)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				c.log.Error("commit offsets failed", "error", err)
			}
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
