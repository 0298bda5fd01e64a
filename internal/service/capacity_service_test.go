package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
)

func fastRetryConfig() *CapacityServiceConfig {
	return &CapacityServiceConfig{
		MaxRetries:           3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
	}
}

func TestReserveCapacity_Success(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			booking.ID = "booking-1"
			booking.Status = domain.BookingStatusConfirmed
			booking.TotalPrice = 300
			return nil
		},
	}
	publisher := newRecordingPublisher()
	svc := NewCapacityService(&MockEventRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
			return &domain.Event{ID: id, AvailableCapacity: 97}, nil
		},
	}, bookingRepo, publisher, fastRetryConfig())

	result, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 3,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if result.BookingID != "booking-1" {
		t.Errorf("BookingID = %s, want booking-1", result.BookingID)
	}
	if result.Status != "CONFIRMED" {
		t.Errorf("Status = %s, want CONFIRMED", result.Status)
	}
	if result.TotalPrice != 300 {
		t.Errorf("TotalPrice = %f, want 300", result.TotalPrice)
	}

	publisher.waitFor(t, domain.BookingEventConfirmed)
	publisher.waitFor(t, domain.CapacityEventChanged)
}

func TestReserveCapacity_Validation(t *testing.T) {
	svc := NewCapacityService(&MockEventRepository{}, &MockBookingRepository{}, nil, fastRetryConfig())

	cases := []struct {
		name string
		req  *dto.ReserveCapacityRequest
		want error
	}{
		{"nil request", nil, domain.ErrInvalidQuantity},
		{"missing user", &dto.ReserveCapacityRequest{EventID: "evt-1", Quantity: 1}, domain.ErrInvalidUserID},
		{"missing event", &dto.ReserveCapacityRequest{UserID: "user-1", Quantity: 1}, domain.ErrInvalidEventID},
		{"zero quantity", &dto.ReserveCapacityRequest{UserID: "user-1", EventID: "evt-1"}, domain.ErrInvalidQuantity},
		{"negative quantity", &dto.ReserveCapacityRequest{UserID: "user-1", EventID: "evt-1", Quantity: -1}, domain.ErrInvalidQuantity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Reserve(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReserveCapacity_IdempotentShortCircuit(t *testing.T) {
	reserveCalls := 0
	bookingRepo := &MockBookingRepository{
		GetByIdempotencyKeyFunc: func(ctx context.Context, key string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:         "booking-original",
				Status:     domain.BookingStatusConfirmed,
				Quantity:   2,
				TotalPrice: 200,
			}, nil
		},
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			reserveCalls++
			return nil
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	result, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:        "evt-1",
		UserID:         "user-1",
		Quantity:       2,
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if result.BookingID != "booking-original" {
		t.Errorf("BookingID = %s, want booking-original", result.BookingID)
	}
	if reserveCalls != 0 {
		t.Errorf("ReserveCapacity called %d times, capacity must not be touched", reserveCalls)
	}
}

func TestReserveCapacity_DuplicateKeyRace(t *testing.T) {
	lookups := 0
	bookingRepo := &MockBookingRepository{
		GetByIdempotencyKeyFunc: func(ctx context.Context, key string) (*domain.Booking, error) {
			lookups++
			if lookups == 1 {
				// Not visible yet on the first check
				return nil, domain.ErrBookingNotFound
			}
			return &domain.Booking{ID: "booking-winner", Status: domain.BookingStatusConfirmed}, nil
		},
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			return domain.ErrDuplicateIdempotencyKey
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	result, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:        "evt-1",
		UserID:         "user-1",
		Quantity:       1,
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if result.BookingID != "booking-winner" {
		t.Errorf("BookingID = %s, want the booking that won the race", result.BookingID)
	}
}

func TestReserveCapacity_RetriesVersionConflict(t *testing.T) {
	attempts := 0
	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			attempts++
			if attempts < 3 {
				return domain.ErrVersionConflict
			}
			booking.ID = "booking-1"
			booking.Status = domain.BookingStatusConfirmed
			return nil
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	result, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.BookingID != "booking-1" {
		t.Errorf("BookingID = %s, want booking-1", result.BookingID)
	}
}

func TestReserveCapacity_ContentionExhaustsRetries(t *testing.T) {
	attempts := 0
	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			attempts++
			return domain.ErrVersionConflict
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	_, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 1,
	})
	if !errors.Is(err, domain.ErrCapacityContention) {
		t.Errorf("error = %v, want ErrCapacityContention", err)
	}

	// Initial attempt plus MaxRetries
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestReserveCapacity_UnavailableExhaustsRetries(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			return fmt.Errorf("%w: dial tcp: connection refused", domain.ErrUnavailable)
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	_, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 1,
	})

	// A dependency that stayed down is retry-later, not contention
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, domain.ErrCapacityContention) {
		t.Error("an unavailable dependency must not surface as contention")
	}
}

func TestReserveCapacity_InsufficientCapacityNotRetried(t *testing.T) {
	attempts := 0
	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			attempts++
			return domain.ErrInsufficientCapacity
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	_, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 100,
	})
	if !errors.Is(err, domain.ErrInsufficientCapacity) {
		t.Errorf("error = %v, want ErrInsufficientCapacity", err)
	}

	if attempts != 1 {
		t.Errorf("attempts = %d, business rejections must not be retried", attempts)
	}
}

// Capacity can never go below zero no matter how many requests race.
func TestReserveCapacity_NoOverselling(t *testing.T) {
	const capacity = 50
	const requests = 200

	var mu sync.Mutex
	available := capacity
	version := 0

	bookingRepo := &MockBookingRepository{
		ReserveCapacityFunc: func(ctx context.Context, booking *domain.Booking) error {
			mu.Lock()
			defer mu.Unlock()
			if booking.Quantity > available {
				return domain.ErrInsufficientCapacity
			}
			available -= booking.Quantity
			version++
			booking.ID = booking.UserID
			booking.Status = domain.BookingStatusConfirmed
			return nil
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	var confirmed int64
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), &dto.ReserveCapacityRequest{
				EventID:  "evt-1",
				UserID:   "user",
				Quantity: 1,
			})
			if err == nil {
				atomic.AddInt64(&confirmed, 1)
			} else if !errors.Is(err, domain.ErrInsufficientCapacity) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if confirmed != capacity {
		t.Errorf("confirmed = %d, want exactly %d", confirmed, capacity)
	}
	if available != 0 {
		t.Errorf("available = %d, want 0", available)
	}
}

func TestCancelBooking_Success(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		CancelWithCapacityRestoreFunc: func(ctx context.Context, bookingID string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:      bookingID,
				EventID: "evt-1",
				Status:  domain.BookingStatusCancelled,
			}, nil
		},
	}
	publisher := newRecordingPublisher()
	svc := NewCapacityService(&MockEventRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
			return &domain.Event{ID: id, AvailableCapacity: 100}, nil
		},
	}, bookingRepo, publisher, fastRetryConfig())

	result, err := svc.Cancel(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if result.Status != "CANCELLED" {
		t.Errorf("Status = %s, want CANCELLED", result.Status)
	}

	publisher.waitFor(t, domain.BookingEventCancelled)
	publisher.waitFor(t, domain.CapacityEventChanged)
}

func TestCancelBooking_AlreadyCancelled(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		CancelWithCapacityRestoreFunc: func(ctx context.Context, bookingID string) (*domain.Booking, error) {
			return nil, domain.ErrBookingAlreadyCancelled
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	if _, err := svc.Cancel(context.Background(), "booking-1"); !errors.Is(err, domain.ErrBookingAlreadyCancelled) {
		t.Errorf("error = %v, want ErrBookingAlreadyCancelled", err)
	}
}

func TestCancelBooking_EmptyID(t *testing.T) {
	svc := NewCapacityService(&MockEventRepository{}, &MockBookingRepository{}, nil, fastRetryConfig())

	if _, err := svc.Cancel(context.Background(), ""); !errors.Is(err, domain.ErrInvalidBookingID) {
		t.Errorf("error = %v, want ErrInvalidBookingID", err)
	}
}

func TestGetBooking(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			if id != "booking-1" {
				return nil, domain.ErrBookingNotFound
			}
			return &domain.Booking{ID: id, UserID: "user-1", Status: domain.BookingStatusConfirmed}, nil
		},
	}
	svc := NewCapacityService(&MockEventRepository{}, bookingRepo, nil, fastRetryConfig())

	result, err := svc.GetBooking(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if result.ID != "booking-1" || result.Status != "CONFIRMED" {
		t.Errorf("unexpected booking: %+v", result)
	}

	if _, err := svc.GetBooking(context.Background(), "missing"); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("error = %v, want ErrBookingNotFound", err)
	}
}
