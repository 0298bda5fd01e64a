package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seatrush/reservation-engine/internal/config"
	"github.com/seatrush/reservation-engine/internal/di"
	"github.com/seatrush/reservation-engine/internal/metrics"
	"github.com/seatrush/reservation-engine/internal/service"
	"github.com/seatrush/reservation-engine/pkg/database"
	"github.com/seatrush/reservation-engine/pkg/logger"
	pkgredis "github.com/seatrush/reservation-engine/pkg/redis"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name + "-worker",
		Development: cfg.IsDevelopment(),
	}
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting reservation worker", "version", cfg.App.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName + "-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal("Failed to initialize telemetry", "error", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Warn("Failed to initialize metrics", "error", err)
	}

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	})
	if err != nil {
		appLog.Fatal("Database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLog.Fatal("Redis connection failed", "error", err)
	}
	defer redisClient.Close()

	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		publisher, pubErr := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name + "-worker",
			ClientID:    cfg.Kafka.ClientID,
		})
		if pubErr != nil {
			appLog.Warn("Kafka connection failed, using no-op publisher", "error", pubErr)
		} else {
			eventPublisher = publisher
		}
	}
	defer eventPublisher.Close()

	container := di.NewContainer(&di.ContainerConfig{
		Config:         cfg,
		DB:             db,
		Redis:          redisClient,
		EventPublisher: eventPublisher,
	})

	if err := container.JobRepo.LoadScripts(ctx); err != nil {
		appLog.Warn("Failed to pre-load queue scripts", "error", err)
	}

	if err := container.Worker.Start(ctx); err != nil {
		appLog.Fatal("Failed to start worker pool", "error", err)
	}
	appLog.Info("Worker pool started",
		"concurrency", cfg.Worker.Concurrency,
		"poll_interval", cfg.Worker.PollInterval,
	)

	if cfg.Scheduler.Enabled {
		go container.Scheduler.Start(ctx)
		appLog.Info("Scheduler started", "report_hour", cfg.Scheduler.RunAtHour)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down worker...")

	// Stop drains in-flight jobs before the context is torn down
	container.Worker.Stop()
	cancel()

	appLog.Info("Worker exited gracefully")
}
