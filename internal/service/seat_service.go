package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
	"github.com/seatrush/reservation-engine/internal/lock"
	"github.com/seatrush/reservation-engine/internal/metrics"
	"github.com/seatrush/reservation-engine/internal/repository"
	"github.com/seatrush/reservation-engine/pkg/logger"
	"github.com/seatrush/reservation-engine/pkg/retry"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// SeatService defines the interface for seat-level reservations
type SeatService interface {
	// ReserveSeats reserves the requested seats all-or-nothing. Business
	// rejections come back as a typed result; errors are infrastructure
	// failures only.
	ReserveSeats(ctx context.Context, payload *domain.SeatReservationPayload) (*domain.SeatReservationResult, error)

	// GetSeatAvailability lists the event's seats with derived booking state
	GetSeatAvailability(ctx context.Context, eventID string) (*dto.SeatAvailabilityResponse, error)
}

// seatService implements SeatService
type seatService struct {
	eventRepo      repository.EventRepository
	bookingRepo    repository.BookingRepository
	seatRepo       repository.SeatRepository
	lockProvider   lock.Provider
	eventPublisher EventPublisher
	lockTTL        time.Duration
	retryConfig    *retry.Config
}

// SeatServiceConfig contains configuration for the seat service
type SeatServiceConfig struct {
	SeatLockTTL          time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// NewSeatService creates a new seat service
func NewSeatService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	seatRepo repository.SeatRepository,
	lockProvider lock.Provider,
	eventPublisher EventPublisher,
	cfg *SeatServiceConfig,
) SeatService {
	lockTTL := 30 * time.Second
	retryConfig := retry.DefaultConfig()
	if cfg != nil {
		if cfg.SeatLockTTL > 0 {
			lockTTL = cfg.SeatLockTTL
		}
		if cfg.MaxRetries > 0 {
			retryConfig.MaxRetries = cfg.MaxRetries
		}
		if cfg.RetryInitialInterval > 0 {
			retryConfig.InitialInterval = cfg.RetryInitialInterval
		}
		if cfg.RetryMaxInterval > 0 {
			retryConfig.MaxInterval = cfg.RetryMaxInterval
		}
	}
	// Use NoOpEventPublisher if none provided
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &seatService{
		eventRepo:      eventRepo,
		bookingRepo:    bookingRepo,
		seatRepo:       seatRepo,
		lockProvider:   lockProvider,
		eventPublisher: eventPublisher,
		lockTTL:        lockTTL,
		retryConfig:    retryConfig,
	}
}

// ReserveSeats reserves the requested seats all-or-nothing
func (s *seatService) ReserveSeats(ctx context.Context, payload *domain.SeatReservationPayload) (*domain.SeatReservationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.seat.reserve_seats")
	defer span.End()

	if payload == nil {
		span.SetStatus(codes.Error, "invalid payload")
		return nil, domain.ErrNoSeatsRequested
	}
	if err := payload.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if hasDuplicates(payload.SeatIDs) {
		span.SetStatus(codes.Error, "duplicate seat ids")
		return nil, domain.ErrDuplicateSeatIDs
	}

	span.SetAttributes(
		attribute.String("user_id", payload.UserID),
		attribute.String("event_id", payload.EventID),
		attribute.Int("seat_count", len(payload.SeatIDs)),
	)

	// Idempotency short-circuit: a retried request returns the original
	// booking without touching seats
	if existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, payload.IdempotencyKey); err == nil && existing != nil {
		metrics.RecordDedupe(ctx, payload.EventID)
		span.SetAttributes(attribute.Bool("deduped", true))
		return &domain.SeatReservationResult{
			Success:    true,
			BookingID:  existing.ID,
			TotalPrice: existing.TotalPrice,
		}, nil
	} else if err != nil && !errors.Is(err, domain.ErrBookingNotFound) {
		span.SetStatus(codes.Error, "idempotency lookup failed")
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	// Sorting the seat set gives every request for the same seats the
	// same lock key regardless of request order
	sorted := make([]string, len(payload.SeatIDs))
	copy(sorted, payload.SeatIDs)
	sort.Strings(sorted)

	lockKey := seatLockKey(payload.EventID, sorted)
	ownerToken := uuid.New().String()

	acquired, err := s.lockProvider.Acquire(ctx, lockKey, ownerToken, s.lockTTL)
	if err != nil {
		span.SetStatus(codes.Error, "lock acquire failed")
		return nil, fmt.Errorf("failed to acquire seat lock: %w", err)
	}
	if !acquired {
		metrics.RecordLockContention(ctx, payload.EventID)
		span.SetAttributes(attribute.Bool("lock.contended", true))
		span.SetStatus(codes.Ok, "seats contested")
		return &domain.SeatReservationResult{
			Success:       false,
			FailureReason: domain.FailureSeatsContested,
		}, nil
	}
	defer func() {
		released, relErr := s.lockProvider.Release(context.Background(), lockKey, ownerToken)
		if relErr != nil {
			logger.Get().Warn("failed to release seat lock", "lock_key", lockKey, "error", relErr)
		} else if !released {
			logger.Get().Warn("seat lock expired before release", "lock_key", lockKey)
		}
	}()

	booking := &domain.Booking{
		UserID:         payload.UserID,
		EventID:        payload.EventID,
		Quantity:       len(sorted),
		IdempotencyKey: payload.IdempotencyKey,
	}

	var reservation *domain.SeatReservationResult
	result := retry.Do(ctx, s.retryConfig, func(ctx context.Context) error {
		res, err := s.seatRepo.ReserveSeats(ctx, booking, sorted)
		if err == nil {
			reservation = res
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.RecordVersionConflict(ctx, payload.EventID)
			return err
		}
		if domain.IsRetryable(err) {
			return err
		}
		return retry.Permanent(err)
	})

	span.SetAttributes(attribute.Int("attempts", result.Attempts))

	if result.Err != nil {
		err := result.Err

		// A concurrent request with the same key won the race; its
		// booking is the answer
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			existing, lookupErr := s.bookingRepo.GetByIdempotencyKey(ctx, payload.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				metrics.RecordDedupe(ctx, payload.EventID)
				span.SetAttributes(attribute.Bool("deduped", true))
				return &domain.SeatReservationResult{
					Success:    true,
					BookingID:  existing.ID,
					TotalPrice: existing.TotalPrice,
				}, nil
			}
		}

		metrics.RecordFailure(ctx, payload.EventID, failureReason(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !reservation.Success {
		metrics.RecordFailure(ctx, payload.EventID, reservation.FailureReason)
		span.SetAttributes(attribute.String("failure_reason", reservation.FailureReason))
		span.SetStatus(codes.Ok, "seats rejected")
		return reservation, nil
	}

	booking.ID = reservation.BookingID
	booking.TotalPrice = reservation.TotalPrice
	booking.Status = domain.BookingStatusConfirmed

	// Publish events async, don't block on failure
	seatIDs := sorted
	go func() {
		pubCtx := context.Background()
		if pubErr := s.eventPublisher.PublishSeatsBooked(pubCtx, booking, seatIDs); pubErr != nil {
			logger.Get().Warn("failed to publish seats booked event", "booking_id", booking.ID, "error", pubErr)
		}
	}()

	metrics.RecordConfirmation(ctx, payload.EventID, len(sorted), result.TotalDuration.Seconds())
	span.SetStatus(codes.Ok, "reserved")

	return reservation, nil
}

// GetSeatAvailability lists the event's seats with derived booking state
func (s *seatService) GetSeatAvailability(ctx context.Context, eventID string) (*dto.SeatAvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.seat.get_availability")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}

	span.SetAttributes(attribute.String("event_id", eventID))

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	views, err := s.seatRepo.ListByEvent(ctx, eventID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := &dto.SeatAvailabilityResponse{
		EventID: eventID,
		Total:   len(views),
		Seats:   make([]*dto.SeatResponse, 0, len(views)),
	}
	for _, v := range views {
		if v.IsAvailable() {
			resp.Available++
		}
		resp.Seats = append(resp.Seats, dto.FromSeatView(v))
	}

	return resp, nil
}

// seatLockKey derives the lock key for a sorted seat set
func seatLockKey(eventID string, sortedSeatIDs []string) string {
	sum := sha1.Sum([]byte(strings.Join(sortedSeatIDs, ",")))
	return fmt.Sprintf("seatlock:%s:%s", eventID, hex.EncodeToString(sum[:]))
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
