package scheduler

import (
	"context"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/logger"
)

// QueueInspector reports queue counters
type QueueInspector interface {
	Stats(ctx context.Context) (*domain.QueueStats, error)
}

// BookingCounter counts confirmed bookings for reporting
type BookingCounter interface {
	CountConfirmedBookings(ctx context.Context, since time.Time) (int64, error)
}

// Config contains scheduler configuration
type Config struct {
	// StatsInterval is the interval between queue stats snapshots
	StatsInterval time.Duration
	// ReportHour is the local hour (0-23) the daily report runs at
	ReportHour int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		StatsInterval: time.Minute,
		ReportHour:    6,
	}
}

// Scheduler runs periodic maintenance and reporting. It logs queue depth
// on an interval and emits a daily booking report.
type Scheduler struct {
	queue      QueueInspector
	bookings   BookingCounter
	config     *Config
	log        *logger.Logger
	lastReport time.Time
}

// New creates a new scheduler
func New(queue QueueInspector, bookings BookingCounter, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = time.Minute
	}
	if config.ReportHour < 0 || config.ReportHour > 23 {
		config.ReportHour = 6
	}

	return &Scheduler{
		queue:    queue,
		bookings: bookings,
		config:   config,
		log:      logger.Get(),
	}
}

// Start runs the scheduler until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting scheduler",
		"stats_interval", s.config.StatsInterval.String(),
		"report_hour", s.config.ReportHour)

	s.lastReport = time.Now()

	statsTicker := time.NewTicker(s.config.StatsInterval)
	defer statsTicker.Stop()

	reportTimer := time.NewTimer(s.untilNextReport(time.Now()))
	defer reportTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-statsTicker.C:
			s.logQueueStats(ctx)
		case <-reportTimer.C:
			s.runDailyReport(ctx)
			reportTimer.Reset(s.untilNextReport(time.Now()))
		}
	}
}

// logQueueStats snapshots queue counters
func (s *Scheduler) logQueueStats(ctx context.Context) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.log.Error("Failed to read queue stats", "error", err)
		return
	}

	s.log.Info("Queue stats",
		"waiting", stats.Waiting,
		"active", stats.Active,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"total", stats.Total)
}

// runDailyReport counts bookings confirmed since the previous report
func (s *Scheduler) runDailyReport(ctx context.Context) {
	since := s.lastReport
	now := time.Now()

	count, err := s.bookings.CountConfirmedBookings(ctx, since)
	if err != nil {
		s.log.Error("Failed to build daily booking report", "error", err)
		return
	}

	s.lastReport = now
	s.log.Info("Daily booking report",
		"confirmed", count,
		"since", since.Format(time.RFC3339),
		"until", now.Format(time.RFC3339))
}

// untilNextReport computes the wait until the next report hour
func (s *Scheduler) untilNextReport(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.ReportHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
