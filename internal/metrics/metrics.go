package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

var (
	// Reservation counters
	ReservationsConfirmed *telemetry.Counter
	ReservationsFailed    *telemetry.Counter
	ReservationsCancelled *telemetry.Counter
	ReservationsDeduped   *telemetry.Counter

	// Retry tracking counters
	VersionConflicts *telemetry.Counter
	LockContentions  *telemetry.Counter

	// Job counters
	JobsEnqueued  *telemetry.Counter
	JobsCompleted *telemetry.Counter
	JobsFailed    *telemetry.Counter

	// Histograms
	ReservationDuration *telemetry.Histogram
	JobDuration         *telemetry.Histogram

	// Gauges
	QueueDepth    *telemetry.UpDownCounter
	ActiveWorkers *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all engine metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	ReservationsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_confirmations_total",
		Description: "Total number of reservations confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_failures_total",
		Description: "Total number of failed reservations by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_cancellations_total",
		Description: "Total number of cancelled reservations",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsDeduped, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_dedupes_total",
		Description: "Total number of requests short-circuited by idempotency key",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	VersionConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_version_conflicts_total",
		Description: "Total number of optimistic capacity update conflicts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	LockContentions, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_lock_contentions_total",
		Description: "Total number of seat lock acquisition failures",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	JobsEnqueued, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_jobs_enqueued_total",
		Description: "Total number of reservation jobs enqueued",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	JobsCompleted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_jobs_completed_total",
		Description: "Total number of reservation jobs completed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	JobsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_jobs_failed_total",
		Description: "Total number of reservation jobs that exhausted their attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Latency buckets sized for a hot reservation path
	ReservationDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "reservation_duration_seconds",
		Description: "Duration of a capacity reservation including retries",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5})
	if err != nil {
		return err
	}

	JobDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "reservation_job_duration_seconds",
		Description: "Duration of a seat reservation job from claim to finish",
		Unit:        "s",
	}, []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
	if err != nil {
		return err
	}

	QueueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "reservation_queue_depth",
		Description: "Current number of jobs waiting in the queue",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ActiveWorkers, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "reservation_active_workers",
		Description: "Current number of workers processing a job",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordConfirmation records a confirmed reservation
func RecordConfirmation(ctx context.Context, eventID string, quantity int, durationSeconds float64) {
	if ReservationsConfirmed != nil {
		ReservationsConfirmed.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.Int("quantity", quantity),
		)
	}
	if ReservationDuration != nil {
		ReservationDuration.Record(ctx, durationSeconds,
			attribute.String("event_id", eventID),
		)
	}
}

// RecordFailure records a failed reservation
func RecordFailure(ctx context.Context, eventID, reason string) {
	if ReservationsFailed != nil {
		ReservationsFailed.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("reason", reason),
		)
	}
}

// RecordCancellation records a cancelled reservation
func RecordCancellation(ctx context.Context, eventID string) {
	if ReservationsCancelled != nil {
		ReservationsCancelled.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
}

// RecordDedupe records an idempotency short-circuit
func RecordDedupe(ctx context.Context, eventID string) {
	if ReservationsDeduped != nil {
		ReservationsDeduped.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
}

// RecordVersionConflict records a lost optimistic update
func RecordVersionConflict(ctx context.Context, eventID string) {
	if VersionConflicts != nil {
		VersionConflicts.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
}

// RecordLockContention records a seat lock that could not be acquired
func RecordLockContention(ctx context.Context, eventID string) {
	if LockContentions != nil {
		LockContentions.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
}

// RecordJobEnqueued records a job entering the queue
func RecordJobEnqueued(ctx context.Context, eventID string) {
	if JobsEnqueued != nil {
		JobsEnqueued.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
	if QueueDepth != nil {
		QueueDepth.Inc(ctx)
	}
}

// RecordJobCompleted records a job finishing with a result
func RecordJobCompleted(ctx context.Context, success bool, durationSeconds float64) {
	if JobsCompleted != nil {
		JobsCompleted.Inc(ctx,
			attribute.Bool("success", success),
		)
	}
	if JobDuration != nil {
		JobDuration.Record(ctx, durationSeconds)
	}
}

// RecordJobFailed records a job that exhausted its attempts
func RecordJobFailed(ctx context.Context, durationSeconds float64) {
	if JobsFailed != nil {
		JobsFailed.Inc(ctx)
	}
	if JobDuration != nil {
		JobDuration.Record(ctx, durationSeconds)
	}
}

// RecordJobDequeued records a job leaving the waiting queue
func RecordJobDequeued(ctx context.Context) {
	if QueueDepth != nil {
		QueueDepth.Dec(ctx)
	}
}

// RecordWorkerStart records a worker picking up a job
func RecordWorkerStart(ctx context.Context) {
	if ActiveWorkers != nil {
		ActiveWorkers.Inc(ctx)
	}
}

// RecordWorkerStop records a worker releasing a job
func RecordWorkerStop(ctx context.Context) {
	if ActiveWorkers != nil {
		ActiveWorkers.Dec(ctx)
	}
}
