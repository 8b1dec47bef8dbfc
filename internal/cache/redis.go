package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"essay-eval-orchestrator/internal/domain"
)

const keyPrefix = "essay-eval:outcome:"

// Connect configures a Redis client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return client, nil
}

// OutcomeCache stores completed outcomes keyed by the normalized request.
type OutcomeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOutcomeCache(client *redis.Client, ttl time.Duration) *OutcomeCache {
	return &OutcomeCache{client: client, ttl: ttl}
}

func (c *OutcomeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *OutcomeCache) Get(ctx context.Context, req domain.EvaluationRequest) (domain.Outcome, bool, error) {
	raw, err := c.client.Get(ctx, Key(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Outcome{}, false, nil
	}
	if err != nil {
		return domain.Outcome{}, false, err
	}
	var outcome domain.Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return domain.Outcome{}, false, fmt.Errorf("decode cached outcome: %w", err)
	}
	return outcome, true, nil
}

func (c *OutcomeCache) Set(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(req), payload, c.ttl).Err()
}

// Key hashes level, topic and text with separators so that field boundaries are unambiguous.
func Key(req domain.EvaluationRequest) string {
	h := sha256.New()
	for _, part := range []string{string(req.LevelGroup), req.TopicPrompt, req.SubmitText} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
