package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
	"github.com/seatrush/reservation-engine/internal/metrics"
	"github.com/seatrush/reservation-engine/internal/repository"
	"github.com/seatrush/reservation-engine/pkg/logger"
	"github.com/seatrush/reservation-engine/pkg/retry"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// CapacityService defines the interface for pooled capacity reservations
type CapacityService interface {
	// Reserve reserves quantity units of event capacity with idempotency support
	Reserve(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error)

	// Cancel cancels a confirmed booking and restores its capacity
	Cancel(ctx context.Context, bookingID string) (*dto.CancelBookingResponse, error)

	// GetBooking retrieves a booking by ID
	GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error)
}

// capacityService implements CapacityService
type capacityService struct {
	eventRepo      repository.EventRepository
	bookingRepo    repository.BookingRepository
	eventPublisher EventPublisher
	retryConfig    *retry.Config
}

// CapacityServiceConfig contains configuration for the capacity service
type CapacityServiceConfig struct {
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// NewCapacityService creates a new capacity service
func NewCapacityService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	eventPublisher EventPublisher,
	cfg *CapacityServiceConfig,
) CapacityService {
	retryConfig := retry.DefaultConfig()
	if cfg != nil {
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
	return &capacityService{
		eventRepo:      eventRepo,
		bookingRepo:    bookingRepo,
		eventPublisher: eventPublisher,
		retryConfig:    retryConfig,
	}
}

// Reserve reserves quantity units of event capacity with idempotency support
func (s *capacityService) Reserve(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.capacity.reserve")
	defer span.End()

	start := time.Now()

	// Validate request
	if req == nil {
		span.SetStatus(codes.Error, "invalid quantity")
		return nil, domain.ErrInvalidQuantity
	}
	if req.UserID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if req.EventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}
	if req.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		return nil, domain.ErrInvalidQuantity
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("event_id", req.EventID),
		attribute.Int("quantity", req.Quantity),
	)

	// Idempotency short-circuit: a retried request returns the original
	// booking without touching capacity
	if req.IdempotencyKey != "" {
		existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil && existing != nil {
			metrics.RecordDedupe(ctx, req.EventID)
			span.SetAttributes(attribute.Bool("deduped", true))
			return capacityReservationFromBooking(existing), nil
		}
		if err != nil && !errors.Is(err, domain.ErrBookingNotFound) {
			span.SetStatus(codes.Error, "idempotency lookup failed")
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	booking := &domain.Booking{
		UserID:         req.UserID,
		EventID:        req.EventID,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	}

	// Version conflicts are retried with backoff; business rejections
	// are terminal and propagate immediately
	result := retry.Do(ctx, s.retryConfig, func(ctx context.Context) error {
		err := s.bookingRepo.ReserveCapacity(ctx, booking)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.RecordVersionConflict(ctx, req.EventID)
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
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) && req.IdempotencyKey != "" {
			existing, lookupErr := s.bookingRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				metrics.RecordDedupe(ctx, req.EventID)
				span.SetAttributes(attribute.Bool("deduped", true))
				return capacityReservationFromBooking(existing), nil
			}
		}

		if errors.Is(err, retry.ErrMaxRetriesExceeded) {
			// A dependency that was down for the whole retry budget is
			// retry-later, not contention
			if errors.Is(result.LastError, domain.ErrUnavailable) {
				metrics.RecordFailure(ctx, req.EventID, "unavailable")
				span.SetStatus(codes.Error, "dependency unavailable")
				return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, result.LastError)
			}
			metrics.RecordFailure(ctx, req.EventID, "contention")
			span.SetStatus(codes.Error, "retries exhausted")
			return nil, fmt.Errorf("%w: %v", domain.ErrCapacityContention, result.LastError)
		}

		metrics.RecordFailure(ctx, req.EventID, failureReason(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Publish events async, don't block on failure
	go func() {
		pubCtx := context.Background()
		if pubErr := s.eventPublisher.PublishBookingConfirmed(pubCtx, booking); pubErr != nil {
			logger.Get().Warn("failed to publish booking confirmed event", "booking_id", booking.ID, "error", pubErr)
		}
		s.publishCapacity(pubCtx, booking.EventID)
	}()

	metrics.RecordConfirmation(ctx, req.EventID, req.Quantity, time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "reserved")

	return capacityReservationFromBooking(booking), nil
}

// Cancel cancels a confirmed booking and restores its capacity
func (s *capacityService) Cancel(ctx context.Context, bookingID string) (*dto.CancelBookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.capacity.cancel")
	defer span.End()

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookingRepo.CancelWithCapacityRestore(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go func() {
		pubCtx := context.Background()
		if pubErr := s.eventPublisher.PublishBookingCancelled(pubCtx, booking); pubErr != nil {
			logger.Get().Warn("failed to publish booking cancelled event", "booking_id", booking.ID, "error", pubErr)
		}
		s.publishCapacity(pubCtx, booking.EventID)
	}()

	metrics.RecordCancellation(ctx, booking.EventID)
	span.SetStatus(codes.Ok, "cancelled")

	return &dto.CancelBookingResponse{
		BookingID: booking.ID,
		Status:    booking.Status.String(),
		Message:   "booking cancelled, capacity restored",
	}, nil
}

// GetBooking retrieves a booking by ID
func (s *capacityService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.capacity.get_booking")
	defer span.End()

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return dto.FromBooking(booking), nil
}

// publishCapacity publishes the event's remaining capacity after a change
func (s *capacityService) publishCapacity(ctx context.Context, eventID string) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		logger.Get().Warn("failed to load event for capacity publish", "event_id", eventID, "error", err)
		return
	}
	if pubErr := s.eventPublisher.PublishCapacityChanged(ctx, eventID, event.AvailableCapacity); pubErr != nil {
		logger.Get().Warn("failed to publish capacity changed event", "event_id", eventID, "error", pubErr)
	}
}

func capacityReservationFromBooking(b *domain.Booking) *dto.CapacityReservation {
	return &dto.CapacityReservation{
		BookingID:  b.ID,
		Status:     b.Status.String(),
		Quantity:   b.Quantity,
		TotalPrice: b.TotalPrice,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, domain.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
