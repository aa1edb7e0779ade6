// Package bus implements the message-bus contract from spec.md §6 over
// Redis Streams. spec.md specifies a RabbitMQ topology — a durable
// client-named queue bound to a direct exchange by one routing key — but no
// AMQP client exists anywhere in the retrieved example pack. A Redis Stream
// per hop, consumed through a consumer group named after the queue, gives
// the same durable-queue and at-least-once-with-manual-ack semantics
// without inventing a dependency that isn't actually available.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FranksOps/foxeye/internal/metrics"
)

// Hop names one crawler→parser or parser→embedder leg. The queue is the
// durable, client-named queue from spec.md §6; the stream key is the Redis
// Stream backing it.
type Hop struct {
	Queue     string
	Stream    string
	RoutingKey string
}

var (
	// CrawlerToParser carries crawl hand-off ids from the crawler to the parser.
	CrawlerToParser = Hop{Queue: "foxeye.parser", Stream: "foxeye:crawler.parser.exchange", RoutingKey: "crawler.to.parser"}
	// ParserToEmbedder carries doc_ids from the parser to the embedder.
	ParserToEmbedder = Hop{Queue: "foxeye.embedder", Stream: "foxeye:parser.embedder.exchange", RoutingKey: "parser.to.embedder"}
)

const consumerGroupStart = "0"

// Handler processes one message body (the UTF-8 bytes of an id). Returning
// an error leaves the message unacknowledged so it is redelivered to the
// consumer group — the at-least-once semantics spec.md §5 requires.
type Handler func(ctx context.Context, id string) error

// Bus publishes and consumes ids over Redis Streams.
type Bus struct {
	rdb *redis.Client
}

// New connects to the Redis instance identified by addr.
func New(addr string) (*Bus, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return &Bus{rdb: redis.NewClient(opt)}, nil
}

// Close releases the underlying connection pool.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

// Ping verifies connectivity at startup.
func (b *Bus) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// EnsureGroup creates the hop's stream and consumer group if they do not
// already exist, mirroring the "declare durable queue" step of the spec's
// broker topology.
func (b *Bus) EnsureGroup(ctx context.Context, hop Hop) error {
	err := b.rdb.XGroupCreateMkStream(ctx, hop.Stream, hop.Queue, consumerGroupStart).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		// BUSYGROUP means the group already exists, which is fine.
		if !isBusyGroupErr(err) {
			return fmt.Errorf("context: %w", err)
		}
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= len("BUSYGROUP") && err.Error()[:len("BUSYGROUP")] == "BUSYGROUP"
}

// Publish writes id as the sole payload on hop's stream.
func (b *Bus) Publish(ctx context.Context, hop Hop, id string) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: hop.Stream,
		Values: map[string]any{"id": id},
	}).Err()
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	metrics.BusMessagesTotal.WithLabelValues(hop.Queue, "publish").Inc()
	return nil
}

// Consume runs handler for every message delivered to hop's consumer group
// under consumerName, until ctx is cancelled. If autoAck is false (the
// default posture — see DESIGN.md Open Question (a)), a message is only
// acknowledged after handler returns nil; a failing handler leaves it
// pending for redelivery. If autoAck is true, the message is acknowledged
// immediately on read regardless of handler's outcome.
func (b *Bus) Consume(ctx context.Context, hop Hop, consumerName string, autoAck bool, handler Handler) error {
	if err := b.EnsureGroup(ctx, hop); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    hop.Queue,
			Consumer: consumerName,
			Streams:  []string{hop.Stream, ">"},
			Count:    16,
			Block:    2 * time.Second,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("context: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				id, _ := msg.Values["id"].(string)

				if autoAck {
					_ = b.rdb.XAck(ctx, hop.Stream, hop.Queue, msg.ID)
				}

				if err := handler(ctx, id); err != nil {
					continue
				}

				if !autoAck {
					_ = b.rdb.XAck(ctx, hop.Stream, hop.Queue, msg.ID)
				}
				metrics.BusMessagesTotal.WithLabelValues(hop.Queue, "consume").Inc()
			}
		}
	}
}
