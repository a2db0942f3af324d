// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"training_server/core/domain"
	"training_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamReminder = "training:reminder"

	// approximate cap; the notification front-end acknowledges well before this
	defaultStreamMaxLen = 100000
)

// RedisProducer implements out.ReminderPublisher using Redis Streams.
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, maxLen: defaultStreamMaxLen}
}

// PublishReminder publishes a day-before reminder job.
func (p *RedisProducer) PublishReminder(ctx context.Context, job *domain.ReminderJob) error {
	return p.publish(ctx, StreamReminder, job.EventID, job)
}

// publish publishes a job to a stream using go-redis.
func (p *RedisProducer) publish(ctx context.Context, stream, key string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"key":  key,
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

var _ out.ReminderPublisher = (*RedisProducer)(nil)
