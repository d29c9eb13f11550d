package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock serializes pipeline runs per post id. Two concurrent trigger
// requests for the same id would otherwise both transition the post to
// processing and both call the external capabilities.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{client: client, ttl: ttl}
}

func runKey(postID string) string {
	return "pipeline:run:" + postID
}

// Acquire claims the lock for postID. Returns false when another run
// already holds it. The TTL bounds how long a crashed holder can block
// subsequent runs.
func (l *RunLock) Acquire(ctx context.Context, postID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, runKey(postID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *RunLock) Release(ctx context.Context, postID string) error {
	if err := l.client.Del(ctx, runKey(postID)).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
