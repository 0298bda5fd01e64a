package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/seatrush/reservation-engine/internal/domain"
)

// PostgreSQL error codes the engine classifies
const (
	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"

	// Class 08 (connection exception) plus operator shutdown codes
	pgClassConnection      = "08"
	pgCodeAdminShutdown    = "57P01"
	pgCodeCrashShutdown    = "57P02"
	pgCodeCannotConnectNow = "57P03"
)

// classifyPgError maps transient SQLSTATE codes to retryable domain errors
// and connection-class failures to domain.ErrUnavailable. Unique violations
// are handled at the call sites that know which constraint they race on.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeSerializationFailure, pgCodeDeadlockDetected:
			return domain.ErrSerializationFailure
		case pgCodeAdminShutdown, pgCodeCrashShutdown, pgCodeCannotConnectNow:
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		if strings.HasPrefix(pgErr.Code, pgClassConnection) {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	return err
}

// classifyRedisError maps Redis transport failures to domain.ErrUnavailable.
// Server replies (redis.Nil included) and context errors pass through.
func classifyRedisError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

// isUniqueViolation checks for a unique constraint violation, optionally
// on a specific constraint name
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != pgCodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
