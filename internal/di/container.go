package di

import (
	"time"

	"github.com/seatrush/reservation-engine/internal/config"
	"github.com/seatrush/reservation-engine/internal/handler"
	"github.com/seatrush/reservation-engine/internal/lock"
	"github.com/seatrush/reservation-engine/internal/repository"
	"github.com/seatrush/reservation-engine/internal/scheduler"
	"github.com/seatrush/reservation-engine/internal/service"
	"github.com/seatrush/reservation-engine/internal/worker"
	"github.com/seatrush/reservation-engine/pkg/database"
	"github.com/seatrush/reservation-engine/pkg/redis"
)

// Container holds all dependencies for the reservation engine
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	EventRepo   repository.EventRepository
	BookingRepo repository.BookingRepository
	SeatRepo    repository.SeatRepository
	JobRepo     repository.JobRepository

	// Locks and publishers
	LockProvider   lock.Provider
	EventPublisher service.EventPublisher

	// Services
	CapacityService service.CapacityService
	SeatService     service.SeatService
	JobService      service.JobService

	// Handlers
	BookingHandler *handler.BookingHandler
	JobHandler     *handler.JobHandler
	HealthHandler  *handler.HealthHandler

	// Background components
	Worker    *worker.ReservationWorker
	Scheduler *scheduler.Scheduler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config         *config.Config
	DB             *database.PostgresDB
	Redis          *redis.Client
	EventPublisher service.EventPublisher
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		EventPublisher: cfg.EventPublisher,
	}

	appCfg := cfg.Config

	// Repositories
	c.EventRepo = repository.NewPostgresEventRepository(c.DB.Pool())
	c.BookingRepo = repository.NewPostgresBookingRepository(c.DB.Pool())
	c.SeatRepo = repository.NewPostgresSeatRepository(c.DB.Pool())
	c.JobRepo = repository.NewRedisJobRepository(c.Redis, "reservations", appCfg.Worker.JobRetention)

	// Locks
	c.LockProvider = lock.NewRedisProvider(c.Redis)

	// Services
	c.CapacityService = service.NewCapacityService(
		c.EventRepo,
		c.BookingRepo,
		c.EventPublisher,
		&service.CapacityServiceConfig{
			MaxRetries:           appCfg.Engine.MaxRetries,
			RetryInitialInterval: appCfg.Engine.RetryInitialInterval,
			RetryMaxInterval:     appCfg.Engine.RetryMaxInterval,
		},
	)
	c.SeatService = service.NewSeatService(
		c.EventRepo,
		c.BookingRepo,
		c.SeatRepo,
		c.LockProvider,
		c.EventPublisher,
		&service.SeatServiceConfig{
			SeatLockTTL:          appCfg.Engine.SeatLockTTL,
			MaxRetries:           appCfg.Engine.MaxRetries,
			RetryInitialInterval: appCfg.Engine.RetryInitialInterval,
			RetryMaxInterval:     appCfg.Engine.RetryMaxInterval,
		},
	)
	c.JobService = service.NewJobService(c.JobRepo)

	// Handlers
	c.BookingHandler = handler.NewBookingHandler(c.CapacityService, c.SeatService)
	c.JobHandler = handler.NewJobHandler(c.JobService)
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis, appCfg.App.Version)

	// Background components
	c.Worker = worker.NewReservationWorker(c.JobRepo, c.SeatService, &worker.ReservationWorkerConfig{
		Concurrency:  appCfg.Worker.Concurrency,
		PollInterval: appCfg.Worker.PollInterval,
		JobAttempts:  appCfg.Worker.JobAttempts,
	})
	c.Scheduler = scheduler.New(c.JobRepo, c.EventRepo, &scheduler.Config{
		StatsInterval: time.Minute,
		ReportHour:    appCfg.Scheduler.RunAtHour,
	})

	return c
}
