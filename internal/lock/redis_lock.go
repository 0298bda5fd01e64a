package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// releaseScript deletes the lock only when the stored value matches the
// caller's owner token. A plain DEL could release a lock that expired and
// was re-acquired by a different holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Provider acquires and releases named locks with expiry. There is no
// queueing or fairness; contention fails fast.
type Provider interface {
	// Acquire sets key=ownerToken only if the key is absent, with the
	// given TTL. Returns false when another holder owns the lock.
	Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error)

	// Release deletes the key only if its current value equals
	// ownerToken. Returns false when the lock is gone or owned by another.
	Release(ctx context.Context, key, ownerToken string) (bool, error)
}

// redisCommands is the subset of redis commands the lock needs
type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisProvider struct {
	client redisCommands
}

var _ Provider = (*redisProvider)(nil)

// NewRedisProvider creates a Redis-backed lock provider
func NewRedisProvider(client redisCommands) Provider {
	return &redisProvider{client: client}
}

// Acquire implements Provider
func (p *redisProvider) Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.acquire")
	defer span.End()

	span.SetAttributes(
		attribute.String("lock.key", key),
		attribute.String("lock.ttl", ttl.String()),
	)

	ok, err := p.client.SetNX(ctx, key, ownerToken, ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, classifyErr(err))
	}

	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	span.SetStatus(codes.Ok, "")
	return ok, nil
}

// Release implements Provider
func (p *redisProvider) Release(ctx context.Context, key, ownerToken string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.release")
	defer span.End()

	span.SetAttributes(attribute.String("lock.key", key))

	deleted, err := p.client.Eval(ctx, releaseScript, []string{key}, ownerToken).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to release lock %s: %w", key, classifyErr(err))
	}

	span.SetAttributes(attribute.Bool("lock.released", deleted == 1))
	span.SetStatus(codes.Ok, "")
	return deleted == 1, nil
}

// classifyErr maps Redis transport failures to domain.ErrUnavailable so
// callers surface a down lock store as retry-later, not internal error.
// Server replies and context errors pass through.
func classifyErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
