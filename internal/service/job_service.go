package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/dto"
	"github.com/seatrush/reservation-engine/internal/metrics"
	"github.com/seatrush/reservation-engine/internal/repository"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// JobService defines the interface for the async reservation queue
type JobService interface {
	// EnqueueSeatReservation enqueues a seat reservation job. Requests
	// with an idempotency key already in flight return the original job.
	EnqueueSeatReservation(ctx context.Context, req *dto.ReserveSeatsRequest) (*dto.EnqueueResponse, error)

	// GetResult retrieves a job's state and, once terminal, its result
	GetResult(ctx context.Context, jobID string) (*dto.JobStatus, error)

	// Cancel cancels a job that is still queued
	Cancel(ctx context.Context, jobID string) error

	// Stats returns a snapshot of queue counters
	Stats(ctx context.Context) (*dto.QueueStatsResponse, error)
}

// jobService implements JobService
type jobService struct {
	jobRepo repository.JobRepository
}

// NewJobService creates a new job service
func NewJobService(jobRepo repository.JobRepository) JobService {
	return &jobService{jobRepo: jobRepo}
}

// EnqueueSeatReservation enqueues a seat reservation job
func (s *jobService) EnqueueSeatReservation(ctx context.Context, req *dto.ReserveSeatsRequest) (*dto.EnqueueResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.job.enqueue")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrNoSeatsRequested
	}

	payload := domain.SeatReservationPayload{
		UserID:         req.UserID,
		EventID:        req.EventID,
		SeatIDs:        req.SeatIDs,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := payload.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	seen := make(map[string]struct{}, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		if _, ok := seen[id]; ok {
			span.SetStatus(codes.Error, "duplicate seat ids")
			return nil, domain.ErrDuplicateSeatIDs
		}
		seen[id] = struct{}{}
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("event_id", req.EventID),
		attribute.Int("seat_count", len(req.SeatIDs)),
	)

	job := domain.NewSeatReservationJob(payload)

	jobID, deduped, err := s.jobRepo.Enqueue(ctx, job)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to enqueue reservation job: %w", err)
	}

	span.SetAttributes(
		attribute.String("job_id", jobID),
		attribute.Bool("deduped", deduped),
	)

	if deduped {
		existing, getErr := s.jobRepo.GetByID(ctx, jobID)
		state := domain.JobStateQueued
		if getErr == nil {
			state = existing.State
		}
		return &dto.EnqueueResponse{
			JobID:   jobID,
			State:   string(state),
			Message: "reservation already in flight for this idempotency key",
		}, nil
	}

	metrics.RecordJobEnqueued(ctx, req.EventID)
	span.SetStatus(codes.Ok, "enqueued")

	return &dto.EnqueueResponse{
		JobID: jobID,
		State: string(domain.JobStateQueued),
	}, nil
}

// GetResult retrieves a job's state and, once terminal, its result
func (s *jobService) GetResult(ctx context.Context, jobID string) (*dto.JobStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.job.get_result")
	defer span.End()

	if jobID == "" {
		span.SetStatus(codes.Error, "invalid job_id")
		return nil, domain.ErrInvalidJobID
	}

	span.SetAttributes(attribute.String("job_id", jobID))

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	status := &dto.JobStatus{
		JobID:      job.ID,
		State:      string(job.State),
		Attempts:   job.Attempts,
		Pending:    !job.IsTerminal(),
		LastError:  job.LastError,
		EnqueuedAt: job.EnqueuedAt,
		FinishedAt: job.FinishedAt,
	}

	if job.State == domain.JobStateCompleted && job.Result != "" {
		var result domain.SeatReservationResult
		if err := json.Unmarshal([]byte(job.Result), &result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
		status.Result = &result
	}

	return status, nil
}

// Cancel cancels a job that is still queued
func (s *jobService) Cancel(ctx context.Context, jobID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.job.cancel")
	defer span.End()

	if jobID == "" {
		span.SetStatus(codes.Error, "invalid job_id")
		return domain.ErrInvalidJobID
	}

	span.SetAttributes(attribute.String("job_id", jobID))

	cancelled, err := s.jobRepo.Cancel(ctx, jobID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !cancelled {
		span.SetStatus(codes.Error, "not cancellable")
		return domain.ErrJobNotCancellable
	}

	metrics.RecordJobDequeued(ctx)
	span.SetStatus(codes.Ok, "cancelled")
	return nil
}

// Stats returns a snapshot of queue counters
func (s *jobService) Stats(ctx context.Context) (*dto.QueueStatsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.job.stats")
	defer span.End()

	stats, err := s.jobRepo.Stats(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return dto.FromQueueStats(stats), nil
}
