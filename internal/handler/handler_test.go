package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
)

// MockCapacityService is a mock implementation of CapacityService
type MockCapacityService struct {
	ReserveFunc    func(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error)
	CancelFunc     func(ctx context.Context, bookingID string) (*dto.CancelBookingResponse, error)
	GetBookingFunc func(ctx context.Context, bookingID string) (*dto.BookingResponse, error)
}

func (m *MockCapacityService) Reserve(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockCapacityService) Cancel(ctx context.Context, bookingID string) (*dto.CancelBookingResponse, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, bookingID)
	}
	return nil, nil
}

func (m *MockCapacityService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error) {
	if m.GetBookingFunc != nil {
		return m.GetBookingFunc(ctx, bookingID)
	}
	return nil, nil
}

// MockSeatService is a mock implementation of SeatService
type MockSeatService struct {
	ReserveSeatsFunc        func(ctx context.Context, payload *domain.SeatReservationPayload) (*domain.SeatReservationResult, error)
	GetSeatAvailabilityFunc func(ctx context.Context, eventID string) (*dto.SeatAvailabilityResponse, error)
}

func (m *MockSeatService) ReserveSeats(ctx context.Context, payload *domain.SeatReservationPayload) (*domain.SeatReservationResult, error) {
	if m.ReserveSeatsFunc != nil {
		return m.ReserveSeatsFunc(ctx, payload)
	}
	return nil, nil
}

func (m *MockSeatService) GetSeatAvailability(ctx context.Context, eventID string) (*dto.SeatAvailabilityResponse, error) {
	if m.GetSeatAvailabilityFunc != nil {
		return m.GetSeatAvailabilityFunc(ctx, eventID)
	}
	return nil, nil
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	EnqueueSeatReservationFunc func(ctx context.Context, req *dto.ReserveSeatsRequest) (*dto.EnqueueResponse, error)
	GetResultFunc              func(ctx context.Context, jobID string) (*dto.JobStatus, error)
	CancelFunc                 func(ctx context.Context, jobID string) error
	StatsFunc                  func(ctx context.Context) (*dto.QueueStatsResponse, error)
}

func (m *MockJobService) EnqueueSeatReservation(ctx context.Context, req *dto.ReserveSeatsRequest) (*dto.EnqueueResponse, error) {
	if m.EnqueueSeatReservationFunc != nil {
		return m.EnqueueSeatReservationFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockJobService) GetResult(ctx context.Context, jobID string) (*dto.JobStatus, error) {
	if m.GetResultFunc != nil {
		return m.GetResultFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *MockJobService) Cancel(ctx context.Context, jobID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, jobID)
	}
	return nil
}

func (m *MockJobService) Stats(ctx context.Context) (*dto.QueueStatsResponse, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &dto.QueueStatsResponse{}, nil
}

func setupRouter(capacity *MockCapacityService, seats *MockSeatService, jobs *MockJobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r,
		NewBookingHandler(capacity, seats),
		NewJobHandler(jobs),
		NewHealthHandler(nil, nil, "test"),
	)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReserveCapacityHandler_Created(t *testing.T) {
	capacity := &MockCapacityService{
		ReserveFunc: func(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error) {
			return &dto.CapacityReservation{BookingID: "booking-1", Status: "CONFIRMED", Quantity: req.Quantity}, nil
		},
	}
	r := setupRouter(capacity, &MockSeatService{}, &MockJobService{})

	w := doJSON(r, http.MethodPost, "/api/v1/reservations", dto.ReserveCapacityRequest{
		EventID:  "evt-1",
		UserID:   "user-1",
		Quantity: 2,
	})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
}

func TestReserveCapacityHandler_HeaderIdempotencyKey(t *testing.T) {
	var gotKey string
	capacity := &MockCapacityService{
		ReserveFunc: func(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error) {
			gotKey = req.IdempotencyKey
			return &dto.CapacityReservation{BookingID: "booking-1"}, nil
		},
	}
	r := setupRouter(capacity, &MockSeatService{}, &MockJobService{})

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(dto.ReserveCapacityRequest{EventID: "evt-1", UserID: "user-1", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", "header-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if gotKey != "header-key" {
		t.Errorf("idempotency key = %s, want header-key", gotKey)
	}
}

func TestReserveCapacityHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient capacity", domain.ErrInsufficientCapacity, http.StatusConflict},
		{"contention", domain.ErrCapacityContention, http.StatusConflict},
		{"event not found", domain.ErrEventNotFound, http.StatusNotFound},
		{"validation", domain.ErrInvalidQuantity, http.StatusBadRequest},
		{"unavailable", domain.ErrUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capacity := &MockCapacityService{
				ReserveFunc: func(ctx context.Context, req *dto.ReserveCapacityRequest) (*dto.CapacityReservation, error) {
					return nil, tc.err
				},
			}
			r := setupRouter(capacity, &MockSeatService{}, &MockJobService{})

			w := doJSON(r, http.MethodPost, "/api/v1/reservations", dto.ReserveCapacityRequest{
				EventID:  "evt-1",
				UserID:   "user-1",
				Quantity: 1,
			})

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestReserveCapacityHandler_BadJSON(t *testing.T) {
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, &MockJobService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCancelBookingHandler(t *testing.T) {
	capacity := &MockCapacityService{
		CancelFunc: func(ctx context.Context, bookingID string) (*dto.CancelBookingResponse, error) {
			if bookingID == "booking-gone" {
				return nil, domain.ErrBookingAlreadyCancelled
			}
			return &dto.CancelBookingResponse{BookingID: bookingID, Status: "CANCELLED"}, nil
		},
	}
	r := setupRouter(capacity, &MockSeatService{}, &MockJobService{})

	w := doJSON(r, http.MethodDelete, "/api/v1/reservations/booking-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/api/v1/reservations/booking-gone", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for double cancel", w.Code)
	}
}

func TestEnqueueSeatReservationHandler(t *testing.T) {
	jobs := &MockJobService{
		EnqueueSeatReservationFunc: func(ctx context.Context, req *dto.ReserveSeatsRequest) (*dto.EnqueueResponse, error) {
			return &dto.EnqueueResponse{JobID: "job-1", State: "QUEUED"}, nil
		},
	}
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, jobs)

	w := doJSON(r, http.MethodPost, "/api/v1/reservations/seats", dto.ReserveSeatsRequest{
		EventID:        "evt-1",
		UserID:         "user-1",
		SeatIDs:        []string{"A1"},
		IdempotencyKey: "key-1",
	})

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data dto.EnqueueResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.JobID != "job-1" {
		t.Errorf("JobID = %s, want job-1", resp.Data.JobID)
	}
}

func TestGetSeatReservationStatusHandler(t *testing.T) {
	jobs := &MockJobService{
		GetResultFunc: func(ctx context.Context, jobID string) (*dto.JobStatus, error) {
			if jobID == "missing" {
				return nil, domain.ErrJobNotFound
			}
			return &dto.JobStatus{JobID: jobID, State: "PROCESSING", Pending: true}, nil
		},
	}
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, jobs)

	w := doJSON(r, http.MethodGet, "/api/v1/reservations/seats/job-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/v1/reservations/seats/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCancelSeatReservationHandler(t *testing.T) {
	jobs := &MockJobService{
		CancelFunc: func(ctx context.Context, jobID string) error {
			if jobID == "processing" {
				return domain.ErrJobNotCancellable
			}
			return nil
		},
	}
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, jobs)

	w := doJSON(r, http.MethodDelete, "/api/v1/reservations/seats/queued", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/api/v1/reservations/seats/processing", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for a claimed job", w.Code)
	}
}

func TestGetQueueStatsHandler(t *testing.T) {
	jobs := &MockJobService{
		StatsFunc: func(ctx context.Context) (*dto.QueueStatsResponse, error) {
			return &dto.QueueStatsResponse{Waiting: 1, Active: 2, Total: 3}, nil
		},
	}
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, jobs)

	w := doJSON(r, http.MethodGet, "/api/v1/queue/stats", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data dto.QueueStatsResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Total != 3 {
		t.Errorf("Total = %d, want 3", resp.Data.Total)
	}
}

func TestGetSeatAvailabilityHandler(t *testing.T) {
	seats := &MockSeatService{
		GetSeatAvailabilityFunc: func(ctx context.Context, eventID string) (*dto.SeatAvailabilityResponse, error) {
			return &dto.SeatAvailabilityResponse{EventID: eventID, Total: 10, Available: 4}, nil
		},
	}
	r := setupRouter(&MockCapacityService{}, seats, &MockJobService{})

	w := doJSON(r, http.MethodGet, "/api/v1/events/evt-1/seats", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHealthHandler_NoDeps(t *testing.T) {
	r := setupRouter(&MockCapacityService{}, &MockSeatService{}, &MockJobService{})

	w := doJSON(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
