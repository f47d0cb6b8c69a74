package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// recordFailureScript increments the failure counter and, at the
// threshold, swaps it for a lockout key in one atomic step. Two racing
// failures therefore cannot double-increment past the threshold or
// impose overlapping lockouts.
//
// KEYS[1] = failure counter, KEYS[2] = lockout key
// ARGV[1] = max attempts, ARGV[2] = lockout duration in ms
// Returns attempts remaining, or -1 when a lockout was imposed.
var recordFailureScript = redis.NewScript(`
local fails = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if fails >= tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[2])
	redis.call('DEL', KEYS[1])
	return -1
end
return tonumber(ARGV[1]) - fails
`)

// RedisAttemptStore keeps attempt state in Redis so lockouts survive
// restarts and are shared across replicas. Expired lockouts disappear
// with their key TTL, which matches the lazy-clear contract.
type RedisAttemptStore struct {
	client      *redis.Client
	maxAttempts int
	lockout     time.Duration
	logger      *logrus.Logger
}

func NewRedisAttemptStore(client *redis.Client, maxAttempts int, lockout time.Duration, logger *logrus.Logger) *RedisAttemptStore {
	return &RedisAttemptStore{
		client:      client,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		logger:      logger,
	}
}

func (s *RedisAttemptStore) Status(ctx context.Context, identity string) (bool, time.Duration, error) {
	remaining, err := s.client.PTTL(ctx, s.lockKey(identity)).Result()
	if err != nil {
		s.logger.WithError(err).Error("Failed to read lockout state")
		return false, 0, fmt.Errorf("failed to read lockout state: %w", err)
	}

	// PTTL reports a negative duration when the key is missing or has
	// no expiry; either way no lockout is in force.
	if remaining > 0 {
		return true, remaining, nil
	}
	return false, 0, nil
}

func (s *RedisAttemptStore) RecordFailure(ctx context.Context, identity string) (bool, int, error) {
	remaining, err := recordFailureScript.Run(ctx, s.client,
		[]string{s.failKey(identity), s.lockKey(identity)},
		s.maxAttempts, s.lockout.Milliseconds(),
	).Int()
	if err != nil {
		s.logger.WithError(err).Error("Failed to record login failure")
		return false, 0, fmt.Errorf("failed to record failure: %w", err)
	}

	if remaining < 0 {
		return true, 0, nil
	}
	return false, remaining, nil
}

func (s *RedisAttemptStore) RecordSuccess(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.failKey(identity), s.lockKey(identity)).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to clear login attempt state")
		return fmt.Errorf("failed to clear attempt state: %w", err)
	}
	return nil
}

func (s *RedisAttemptStore) failKey(identity string) string {
	return fmt.Sprintf("login_fail:%s", identity)
}

func (s *RedisAttemptStore) lockKey(identity string) string {
	return fmt.Sprintf("login_lock:%s", identity)
}
