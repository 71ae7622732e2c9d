package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReviewLocker serializes review runs per bounty.
type ReviewLocker interface {
	// TryLock acquires the bounty's lock without waiting. ok is false when
	// another run holds it.
	TryLock(ctx context.Context, bountyID string) (release func(), ok bool, err error)
}

// NewLocalReviewLocker returns an in-process keyed lock.
func NewLocalReviewLocker() ReviewLocker {
	return &localReviewLocker{held: map[string]struct{}{}}
}

type localReviewLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (l *localReviewLocker) TryLock(_ context.Context, bountyID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[bountyID]; busy {
		return nil, false, nil
	}
	l.held[bountyID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, bountyID)
			l.mu.Unlock()
		})
	}, true, nil
}

// NewNoopReviewLocker never excludes anything; concurrent runs for the same
// bounty race and the last apply wins.
func NewNoopReviewLocker() ReviewLocker {
	return noopReviewLocker{}
}

type noopReviewLocker struct{}

func (noopReviewLocker) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisReviewLocker returns a lock shared by every API node. The ttl bounds how
// long a crashed node can block reviews of a bounty.
func NewRedisReviewLocker(client *redis.Client, ttl time.Duration) ReviewLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisReviewLocker{client: client, ttl: ttl}
}

type redisReviewLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func (l *redisReviewLocker) TryLock(ctx context.Context, bountyID string) (func(), bool, error) {
	key := "monquest:review-lock:" + bountyID
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseLockScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}, true, nil
}
