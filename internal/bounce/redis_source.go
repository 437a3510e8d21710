package bounce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// FeedbackQueueKey is the Redis list external mailbox fetchers push raw
// feedback messages onto. Each element is a JSON-encoded FeedbackMessage.
const FeedbackQueueKey = "bounce:feedback"

const fetchBatchSize = 100

// RedisSource reads feedback messages from a Redis list queue. Mailbox
// fetchers run out of process and push; this side only pops.
type RedisSource struct {
	client *redis.Client
}

// NewRedisSource creates a Redis-backed feedback source.
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// Fetch pops up to one batch off the queue. Malformed elements are
// consumed as raw message bodies rather than dropped, so hand-pushed
// plain DSN text still classifies.
func (s *RedisSource) Fetch(ctx context.Context) ([]FeedbackMessage, error) {
	var out []FeedbackMessage
	for len(out) < fetchBatchSize {
		raw, err := s.client.LPop(ctx, FeedbackQueueKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, fmt.Errorf("pop feedback: %w", err)
		}
		var msg FeedbackMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.Raw == "" {
			msg = FeedbackMessage{Raw: raw}
		}
		out = append(out, msg)
	}
	return out, nil
}
