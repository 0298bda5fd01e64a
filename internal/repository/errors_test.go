package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/seatrush/reservation-engine/internal/domain"
)

func TestClassifyPgError_SerializationFailure(t *testing.T) {
	err := &pgconn.PgError{Code: pgCodeSerializationFailure}

	if !errors.Is(classifyPgError(err), domain.ErrSerializationFailure) {
		t.Error("40001 should classify as ErrSerializationFailure")
	}
}

func TestClassifyPgError_Deadlock(t *testing.T) {
	err := fmt.Errorf("exec failed: %w", &pgconn.PgError{Code: pgCodeDeadlockDetected})

	if !errors.Is(classifyPgError(err), domain.ErrSerializationFailure) {
		t.Error("wrapped 40P01 should classify as ErrSerializationFailure")
	}
}

func TestClassifyPgError_PassThrough(t *testing.T) {
	err := errors.New("some other error")

	if classifyPgError(err) != err {
		t.Error("unclassified errors must pass through unchanged")
	}
}

func TestClassifyPgError_ConnectionErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}},
		{"cannot connect now", &pgconn.PgError{Code: pgCodeCannotConnectNow}},
		{"admin shutdown", &pgconn.PgError{Code: pgCodeAdminShutdown}},
		{"dial refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyPgError(tc.err)
			if !errors.Is(got, domain.ErrUnavailable) {
				t.Errorf("classifyPgError(%v) = %v, want ErrUnavailable", tc.err, got)
			}
			if !domain.IsRetryable(got) {
				t.Error("unavailable errors must be retryable")
			}
		})
	}
}

func TestClassifyPgError_ContextErrorsPassThrough(t *testing.T) {
	if !errors.Is(classifyPgError(context.Canceled), context.Canceled) {
		t.Error("context.Canceled must pass through")
	}
	if errors.Is(classifyPgError(context.Canceled), domain.ErrUnavailable) {
		t.Error("a cancelled caller is not an unavailable dependency")
	}
}

// fakeReplyError mimics a Redis server reply error
type fakeReplyError string

func (e fakeReplyError) Error() string { return string(e) }
func (e fakeReplyError) RedisError()   {}

func TestClassifyRedisError(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !errors.Is(classifyRedisError(dialErr), domain.ErrUnavailable) {
		t.Error("transport errors should classify as ErrUnavailable")
	}

	if !errors.Is(classifyRedisError(redis.Nil), redis.Nil) {
		t.Error("redis.Nil must pass through")
	}

	replyErr := fakeReplyError("ERR wrong number of arguments")
	if errors.Is(classifyRedisError(replyErr), domain.ErrUnavailable) {
		t.Error("server replies are not transport failures")
	}

	if errors.Is(classifyRedisError(context.DeadlineExceeded), domain.ErrUnavailable) {
		t.Error("context deadline must pass through")
	}

	if classifyRedisError(nil) != nil {
		t.Error("nil stays nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: pgCodeUniqueViolation, ConstraintName: "bookings_idempotency_key_key"}

	if !isUniqueViolation(err, "") {
		t.Error("23505 should match any constraint when none is named")
	}

	if !isUniqueViolation(err, "bookings_idempotency_key_key") {
		t.Error("23505 should match its own constraint name")
	}

	if isUniqueViolation(err, "other_constraint") {
		t.Error("23505 should not match a different constraint name")
	}

	if isUniqueViolation(errors.New("not a pg error"), "") {
		t.Error("non-pg errors are not unique violations")
	}
}
