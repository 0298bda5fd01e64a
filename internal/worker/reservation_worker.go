package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/internal/metrics"
	"github.com/seatrush/reservation-engine/internal/repository"
	"github.com/seatrush/reservation-engine/internal/service"
	"github.com/seatrush/reservation-engine/pkg/logger"
)

// ReservationWorkerConfig contains configuration for the reservation worker
type ReservationWorkerConfig struct {
	// Concurrency is the number of goroutines claiming jobs
	Concurrency int
	// PollInterval is the idle wait between claim attempts when the queue is empty
	PollInterval time.Duration
	// JobAttempts is the number of attempts per job before it is failed
	JobAttempts int
	// AttemptInterval is the wait between attempts of the same job
	AttemptInterval time.Duration
}

// DefaultReservationWorkerConfig returns default configuration
func DefaultReservationWorkerConfig() *ReservationWorkerConfig {
	return &ReservationWorkerConfig{
		Concurrency:     5,
		PollInterval:    200 * time.Millisecond,
		JobAttempts:     3,
		AttemptInterval: 500 * time.Millisecond,
	}
}

// ReservationWorker claims queued seat reservation jobs and executes them
type ReservationWorker struct {
	jobRepo     repository.JobRepository
	seatService service.SeatService
	config      *ReservationWorkerConfig
	log         *logger.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool

	// Stats
	totalClaimed   int64
	totalCompleted int64
	totalFailed    int64
	lastJobTime    time.Time
}

// NewReservationWorker creates a new reservation worker
func NewReservationWorker(
	jobRepo repository.JobRepository,
	seatService service.SeatService,
	config *ReservationWorkerConfig,
) *ReservationWorker {
	if config == nil {
		config = DefaultReservationWorkerConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 200 * time.Millisecond
	}
	if config.JobAttempts <= 0 {
		config.JobAttempts = 3
	}
	if config.AttemptInterval <= 0 {
		config.AttemptInterval = 500 * time.Millisecond
	}

	return &ReservationWorker{
		jobRepo:     jobRepo,
		seatService: seatService,
		config:      config,
		log:         logger.Get(),
		stopCh:      make(chan struct{}),
	}
}

// Start starts the worker pool
func (w *ReservationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reservation worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting reservation worker", "concurrency", w.config.Concurrency)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.claimLoop(ctx, i)
	}

	return nil
}

// Stop stops the worker pool. In-flight jobs run to completion.
func (w *ReservationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping reservation worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Reservation worker stopped")
}

// claimLoop claims jobs until the worker is stopped. The queue is drained
// continuously; the poll interval only applies while the queue is empty.
func (w *ReservationWorker) claimLoop(ctx context.Context, id int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.jobRepo.Claim(ctx)
		if err != nil {
			w.log.Error("Failed to claim job", "worker", id, "error", err)
		} else if job != nil {
			w.processJob(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// processJob executes one claimed job with bounded attempts. Business
// rejections are results, not errors, and never consume extra attempts.
func (w *ReservationWorker) processJob(ctx context.Context, job *domain.ReservationJob) {
	start := time.Now()

	metrics.RecordWorkerStart(ctx)
	metrics.RecordJobDequeued(ctx)
	defer metrics.RecordWorkerStop(ctx)

	w.mu.Lock()
	w.totalClaimed++
	w.lastJobTime = start
	w.mu.Unlock()

	if job.Type != domain.JobTypeSeatReservation {
		w.recordFailure(ctx, job.ID, fmt.Sprintf("unknown job type %q", job.Type), 1, start)
		return
	}

	var lastErr error
	attempts := 0
	for attempts < w.config.JobAttempts {
		attempts++

		result, err := w.seatService.ReserveSeats(ctx, &job.Payload)
		if err == nil {
			w.recordResult(ctx, job.ID, result, attempts, start)
			return
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			break
		}
		if attempts == w.config.JobAttempts {
			break
		}

		w.log.Warn("Job attempt failed, retrying",
			"job_id", job.ID, "attempt", attempts, "error", err)

		select {
		case <-ctx.Done():
			w.recordFailure(ctx, job.ID, ctx.Err().Error(), attempts, start)
			return
		case <-time.After(w.config.AttemptInterval):
		}
	}

	w.recordFailure(ctx, job.ID, lastErr.Error(), attempts, start)
}

// recordResult persists a terminal result for the job. The write is
// detached from the caller's context so a shutdown mid-job cannot leave
// the record stuck in PROCESSING.
func (w *ReservationWorker) recordResult(ctx context.Context, jobID string, result *domain.SeatReservationResult, attempts int, start time.Time) {
	ctx = context.WithoutCancel(ctx)

	raw, err := json.Marshal(result)
	if err != nil {
		w.recordFailure(ctx, jobID, fmt.Sprintf("failed to encode result: %v", err), attempts, start)
		return
	}

	if err := w.jobRepo.Complete(ctx, jobID, string(raw), attempts); err != nil {
		w.log.Error("Failed to record job result", "job_id", jobID, "error", err)
		return
	}

	w.mu.Lock()
	w.totalCompleted++
	w.mu.Unlock()

	metrics.RecordJobCompleted(ctx, result.Success, time.Since(start).Seconds())

	if result.Success {
		w.log.Info("Reservation job completed",
			"job_id", jobID, "booking_id", result.BookingID, "attempts", attempts)
	} else {
		w.log.Info("Reservation job rejected",
			"job_id", jobID, "reason", result.FailureReason, "attempts", attempts)
	}
}

// recordFailure persists a terminal failure for the job, detached from
// the caller's context like recordResult
func (w *ReservationWorker) recordFailure(ctx context.Context, jobID, lastError string, attempts int, start time.Time) {
	ctx = context.WithoutCancel(ctx)

	if err := w.jobRepo.Fail(ctx, jobID, lastError, attempts); err != nil {
		w.log.Error("Failed to record job failure", "job_id", jobID, "error", err)
		return
	}

	w.mu.Lock()
	w.totalFailed++
	w.mu.Unlock()

	metrics.RecordJobFailed(ctx, time.Since(start).Seconds())

	w.log.Error("Reservation job failed",
		"job_id", jobID, "attempts", attempts, "error", lastError)
}

// GetStats returns worker statistics
func (w *ReservationWorker) GetStats() *ReservationWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ReservationWorkerStats{
		IsRunning:      w.running,
		Concurrency:    w.config.Concurrency,
		TotalClaimed:   w.totalClaimed,
		TotalCompleted: w.totalCompleted,
		TotalFailed:    w.totalFailed,
		LastJobTime:    w.lastJobTime,
	}
}

// ReservationWorkerStats contains worker statistics
type ReservationWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	Concurrency    int       `json:"concurrency"`
	TotalClaimed   int64     `json:"total_claimed"`
	TotalCompleted int64     `json:"total_completed"`
	TotalFailed    int64     `json:"total_failed"`
	LastJobTime    time.Time `json:"last_job_time"`
}
