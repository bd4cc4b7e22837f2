package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/attestly/ledger/common/logger"
	rediscommon "github.com/attestly/ledger/common/redis"
	"github.com/google/uuid"
)

// RedisQueue is a Queue backed by Redis streams. Publishes go through XADD;
// subscriptions use a consumer group per topic so every message is handled
// at least once even across restarts.
type RedisQueue struct {
	client *rediscommon.Client
	log    *logger.Logger
}

// NewRedisQueue creates a stream-backed queue
func NewRedisQueue(client *rediscommon.Client, log *logger.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		log:    log,
	}
}

// Publish appends a message to the topic stream
func (q *RedisQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	_, err := q.client.AddToStream(ctx, topic, map[string]interface{}{
		"key":     key,
		"payload": string(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic stream through a consumer group and invokes
// handler for every message. Runs until ctx is cancelled.
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	group := topic + ".consumers"
	consumer := fmt.Sprintf("consumer_%s", uuid.New().String()[:8])

	if err := q.client.CreateStreamGroup(ctx, topic, group); err != nil {
		return err
	}

	q.log.Info("subscribing to stream", "stream", topic, "group", group, "consumer", consumer)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("stream subscription cancelled", "stream", topic)
				return
			default:
			}

			streams, err := q.client.ReadFromStreamGroup(ctx, group, consumer, topic, 10, 5*time.Second)
			if err != nil {
				q.log.Error("stream read failed", "stream", topic, "error", err)
				time.Sleep(1 * time.Second) // Back off on error
				continue
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					key, _ := msg.Values["key"].(string)
					payload, _ := msg.Values["payload"].(string)

					if err := handler(ctx, key, []byte(payload)); err != nil {
						q.log.Error("message handler error", "stream", topic, "message_id", msg.ID, "error", err)
						// Continue to next message even if this one fails
					}

					if err := q.client.AckStreamMessage(ctx, topic, group, msg.ID); err != nil {
						q.log.Error("failed to ack message", "stream", topic, "message_id", msg.ID, "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Close closes the queue. The underlying Redis client is owned by the
// bootstrap layer and closed there.
func (q *RedisQueue) Close() error {
	return nil
}
