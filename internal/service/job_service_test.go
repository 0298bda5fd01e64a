package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
)

func seatsRequest() *dto.ReserveSeatsRequest {
	return &dto.ReserveSeatsRequest{
		EventID:        "evt-1",
		UserID:         "user-1",
		SeatIDs:        []string{"B2", "A1"},
		IdempotencyKey: "key-1",
	}
}

func TestEnqueueSeatReservation_Success(t *testing.T) {
	var enqueued *domain.ReservationJob
	jobRepo := &MockJobRepository{
		EnqueueFunc: func(ctx context.Context, job *domain.ReservationJob) (string, bool, error) {
			enqueued = job
			return job.ID, false, nil
		},
	}
	svc := NewJobService(jobRepo)

	resp, err := svc.EnqueueSeatReservation(context.Background(), seatsRequest())
	if err != nil {
		t.Fatalf("EnqueueSeatReservation failed: %v", err)
	}

	if resp.State != "QUEUED" {
		t.Errorf("State = %s, want QUEUED", resp.State)
	}
	if resp.JobID == "" || resp.JobID != enqueued.ID {
		t.Errorf("JobID = %s, want the enqueued job's ID %s", resp.JobID, enqueued.ID)
	}
	if enqueued.Payload.SeatIDs[0] != "A1" || enqueued.Payload.SeatIDs[1] != "B2" {
		t.Errorf("seat IDs not sorted in payload: %v", enqueued.Payload.SeatIDs)
	}
}

func TestEnqueueSeatReservation_Deduped(t *testing.T) {
	jobRepo := &MockJobRepository{
		EnqueueFunc: func(ctx context.Context, job *domain.ReservationJob) (string, bool, error) {
			return "job-original", true, nil
		},
		GetByIDFunc: func(ctx context.Context, jobID string) (*domain.ReservationJob, error) {
			return &domain.ReservationJob{ID: jobID, State: domain.JobStateProcessing}, nil
		},
	}
	svc := NewJobService(jobRepo)

	resp, err := svc.EnqueueSeatReservation(context.Background(), seatsRequest())
	if err != nil {
		t.Fatalf("EnqueueSeatReservation failed: %v", err)
	}

	if resp.JobID != "job-original" {
		t.Errorf("JobID = %s, want the original job's ID", resp.JobID)
	}
	if resp.State != "PROCESSING" {
		t.Errorf("State = %s, want the original job's state", resp.State)
	}
	if resp.Message == "" {
		t.Error("deduped response should carry a message")
	}
}

func TestEnqueueSeatReservation_Validation(t *testing.T) {
	svc := NewJobService(&MockJobRepository{})

	noKey := seatsRequest()
	noKey.IdempotencyKey = ""
	if _, err := svc.EnqueueSeatReservation(context.Background(), noKey); !errors.Is(err, domain.ErrInvalidIdempotencyKey) {
		t.Errorf("error = %v, want ErrInvalidIdempotencyKey", err)
	}

	dup := seatsRequest()
	dup.SeatIDs = []string{"A1", "A1"}
	if _, err := svc.EnqueueSeatReservation(context.Background(), dup); !errors.Is(err, domain.ErrDuplicateSeatIDs) {
		t.Errorf("error = %v, want ErrDuplicateSeatIDs", err)
	}

	empty := seatsRequest()
	empty.SeatIDs = nil
	if _, err := svc.EnqueueSeatReservation(context.Background(), empty); !errors.Is(err, domain.ErrNoSeatsRequested) {
		t.Errorf("error = %v, want ErrNoSeatsRequested", err)
	}

	if _, err := svc.EnqueueSeatReservation(context.Background(), nil); !errors.Is(err, domain.ErrNoSeatsRequested) {
		t.Errorf("error = %v, want ErrNoSeatsRequested", err)
	}
}

func TestGetResult_Pending(t *testing.T) {
	jobRepo := &MockJobRepository{
		GetByIDFunc: func(ctx context.Context, jobID string) (*domain.ReservationJob, error) {
			return &domain.ReservationJob{
				ID:         jobID,
				State:      domain.JobStateQueued,
				EnqueuedAt: time.Now(),
			}, nil
		},
	}
	svc := NewJobService(jobRepo)

	status, err := svc.GetResult(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}

	if !status.Pending {
		t.Error("queued job should be pending")
	}
	if status.Result != nil {
		t.Error("pending job should have no result")
	}
}

func TestGetResult_Completed(t *testing.T) {
	result := domain.SeatReservationResult{Success: true, BookingID: "booking-1", TotalPrice: 250}
	raw, _ := json.Marshal(result)
	finished := time.Now()

	jobRepo := &MockJobRepository{
		GetByIDFunc: func(ctx context.Context, jobID string) (*domain.ReservationJob, error) {
			return &domain.ReservationJob{
				ID:         jobID,
				State:      domain.JobStateCompleted,
				Attempts:   1,
				Result:     string(raw),
				FinishedAt: &finished,
			}, nil
		},
	}
	svc := NewJobService(jobRepo)

	status, err := svc.GetResult(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}

	if status.Pending {
		t.Error("completed job should not be pending")
	}
	if status.Result == nil || status.Result.BookingID != "booking-1" {
		t.Errorf("result not decoded: %+v", status.Result)
	}
	if status.FinishedAt == nil {
		t.Error("completed job should have a finish time")
	}
}

func TestGetResult_NotFound(t *testing.T) {
	svc := NewJobService(&MockJobRepository{})

	if _, err := svc.GetResult(context.Background(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}

	if _, err := svc.GetResult(context.Background(), ""); !errors.Is(err, domain.ErrInvalidJobID) {
		t.Errorf("error = %v, want ErrInvalidJobID", err)
	}
}

func TestCancelJob(t *testing.T) {
	jobRepo := &MockJobRepository{
		CancelFunc: func(ctx context.Context, jobID string) (bool, error) {
			switch jobID {
			case "queued":
				return true, nil
			case "processing":
				return false, nil
			default:
				return false, domain.ErrJobNotFound
			}
		},
	}
	svc := NewJobService(jobRepo)

	if err := svc.Cancel(context.Background(), "queued"); err != nil {
		t.Errorf("Cancel(queued) failed: %v", err)
	}

	if err := svc.Cancel(context.Background(), "processing"); !errors.Is(err, domain.ErrJobNotCancellable) {
		t.Errorf("error = %v, want ErrJobNotCancellable", err)
	}

	if err := svc.Cancel(context.Background(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestQueueStats(t *testing.T) {
	jobRepo := &MockJobRepository{
		StatsFunc: func(ctx context.Context) (*domain.QueueStats, error) {
			return &domain.QueueStats{Waiting: 3, Active: 2, Completed: 10, Failed: 1, Total: 16}, nil
		},
	}
	svc := NewJobService(jobRepo)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Waiting != 3 || stats.Active != 2 || stats.Total != 16 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
