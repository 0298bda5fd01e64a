package service

import (
	"context"
	"sync"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
)

// MockEventRepository is a mock implementation of repository.EventRepository
type MockEventRepository struct {
	GetByIDFunc                func(ctx context.Context, id string) (*domain.Event, error)
	CreateFunc                 func(ctx context.Context, event *domain.Event) error
	CountConfirmedBookingsFunc func(ctx context.Context, since time.Time) (int64, error)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return nil
}

func (m *MockEventRepository) CountConfirmedBookings(ctx context.Context, since time.Time) (int64, error) {
	if m.CountConfirmedBookingsFunc != nil {
		return m.CountConfirmedBookingsFunc(ctx, since)
	}
	return 0, nil
}

// MockBookingRepository is a mock implementation of repository.BookingRepository
type MockBookingRepository struct {
	GetByIDFunc                   func(ctx context.Context, id string) (*domain.Booking, error)
	GetByIdempotencyKeyFunc       func(ctx context.Context, key string) (*domain.Booking, error)
	ReserveCapacityFunc           func(ctx context.Context, booking *domain.Booking) error
	CancelWithCapacityRestoreFunc func(ctx context.Context, bookingID string) (*domain.Booking, error)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	if m.GetByIdempotencyKeyFunc != nil {
		return m.GetByIdempotencyKeyFunc(ctx, key)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) ReserveCapacity(ctx context.Context, booking *domain.Booking) error {
	if m.ReserveCapacityFunc != nil {
		return m.ReserveCapacityFunc(ctx, booking)
	}
	return nil
}

func (m *MockBookingRepository) CancelWithCapacityRestore(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if m.CancelWithCapacityRestoreFunc != nil {
		return m.CancelWithCapacityRestoreFunc(ctx, bookingID)
	}
	return nil, domain.ErrBookingNotFound
}

// MockSeatRepository is a mock implementation of repository.SeatRepository
type MockSeatRepository struct {
	ReserveSeatsFunc func(ctx context.Context, booking *domain.Booking, seatIDs []string) (*domain.SeatReservationResult, error)
	ListByEventFunc  func(ctx context.Context, eventID string) ([]*domain.SeatView, error)
}

func (m *MockSeatRepository) ReserveSeats(ctx context.Context, booking *domain.Booking, seatIDs []string) (*domain.SeatReservationResult, error) {
	if m.ReserveSeatsFunc != nil {
		return m.ReserveSeatsFunc(ctx, booking, seatIDs)
	}
	return &domain.SeatReservationResult{Success: true, BookingID: "booking-1"}, nil
}

func (m *MockSeatRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.SeatView, error) {
	if m.ListByEventFunc != nil {
		return m.ListByEventFunc(ctx, eventID)
	}
	return []*domain.SeatView{}, nil
}

// MockJobRepository is a mock implementation of repository.JobRepository
type MockJobRepository struct {
	LoadScriptsFunc func(ctx context.Context) error
	EnqueueFunc     func(ctx context.Context, job *domain.ReservationJob) (string, bool, error)
	ClaimFunc       func(ctx context.Context) (*domain.ReservationJob, error)
	CompleteFunc    func(ctx context.Context, jobID string, resultJSON string, attempts int) error
	FailFunc        func(ctx context.Context, jobID string, lastError string, attempts int) error
	CancelFunc      func(ctx context.Context, jobID string) (bool, error)
	GetByIDFunc     func(ctx context.Context, jobID string) (*domain.ReservationJob, error)
	StatsFunc       func(ctx context.Context) (*domain.QueueStats, error)
}

func (m *MockJobRepository) LoadScripts(ctx context.Context) error {
	if m.LoadScriptsFunc != nil {
		return m.LoadScriptsFunc(ctx)
	}
	return nil
}

func (m *MockJobRepository) Enqueue(ctx context.Context, job *domain.ReservationJob) (string, bool, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, job)
	}
	return job.ID, false, nil
}

func (m *MockJobRepository) Claim(ctx context.Context) (*domain.ReservationJob, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx)
	}
	return nil, nil
}

func (m *MockJobRepository) Complete(ctx context.Context, jobID string, resultJSON string, attempts int) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, jobID, resultJSON, attempts)
	}
	return nil
}

func (m *MockJobRepository) Fail(ctx context.Context, jobID string, lastError string, attempts int) error {
	if m.FailFunc != nil {
		return m.FailFunc(ctx, jobID, lastError, attempts)
	}
	return nil
}

func (m *MockJobRepository) Cancel(ctx context.Context, jobID string) (bool, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, jobID)
	}
	return false, domain.ErrJobNotFound
}

func (m *MockJobRepository) GetByID(ctx context.Context, jobID string) (*domain.ReservationJob, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, jobID)
	}
	return nil, domain.ErrJobNotFound
}

func (m *MockJobRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &domain.QueueStats{}, nil
}

// MockLockProvider is a mock implementation of lock.Provider
type MockLockProvider struct {
	AcquireFunc func(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error)
	ReleaseFunc func(ctx context.Context, key, ownerToken string) (bool, error)
}

func (m *MockLockProvider) Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, ownerToken, ttl)
	}
	return true, nil
}

func (m *MockLockProvider) Release(ctx context.Context, key, ownerToken string) (bool, error) {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key, ownerToken)
	}
	return true, nil
}

// recordingPublisher captures published events for assertions. Publishes
// happen on background goroutines, so access is mutex guarded and tests
// wait on the channel.
type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []*domain.Booking
	cancelled []*domain.Booking
	seats     [][]string
	published chan domain.BookingEventType
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan domain.BookingEventType, 16)}
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	p.mu.Lock()
	p.confirmed = append(p.confirmed, booking)
	p.mu.Unlock()
	p.published <- domain.BookingEventConfirmed
	return nil
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, booking *domain.Booking) error {
	p.mu.Lock()
	p.cancelled = append(p.cancelled, booking)
	p.mu.Unlock()
	p.published <- domain.BookingEventCancelled
	return nil
}

func (p *recordingPublisher) PublishCapacityChanged(ctx context.Context, eventID string, available int) error {
	p.published <- domain.CapacityEventChanged
	return nil
}

func (p *recordingPublisher) PublishSeatsBooked(ctx context.Context, booking *domain.Booking, seatIDs []string) error {
	p.mu.Lock()
	p.seats = append(p.seats, seatIDs)
	p.mu.Unlock()
	p.published <- domain.SeatsEventBooked
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

// waitFor blocks until an event of the given type is published
func (p *recordingPublisher) waitFor(t testingT, want domain.BookingEventType) {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-p.published:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return
		}
	}
}

// testingT is the subset of *testing.T the helpers need
type testingT interface {
	Fatalf(format string, args ...interface{})
}
