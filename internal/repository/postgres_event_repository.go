package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// PostgresEventRepository implements EventRepository using PostgreSQL with pgxpool
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

var _ EventRepository = (*PostgresEventRepository)(nil)

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// GetByID retrieves an event by its ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	query := `
		SELECT id, name, capacity, available_capacity, version,
		       base_price, seat_level_booking, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	event := &domain.Event{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.Capacity,
		&event.AvailableCapacity,
		&event.Version,
		&event.BasePrice,
		&event.SeatLevelBooking,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return event, nil
}

// Create inserts a new event
func (r *PostgresEventRepository) Create(ctx context.Context, event *domain.Event) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.create")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", event.ID))

	query := `
		INSERT INTO events (
			id, name, capacity, available_capacity, version,
			base_price, seat_level_booking, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Name,
		event.Capacity,
		event.AvailableCapacity,
		event.Version,
		event.BasePrice,
		event.SeatLevelBooking,
		now,
		now,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CountConfirmedBookings counts bookings confirmed since the given time
func (r *PostgresEventRepository) CountConfirmedBookings(ctx context.Context, since time.Time) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.count_confirmed")
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE status = $1 AND created_at >= $2
	`

	var count int64
	err := r.pool.QueryRow(ctx, query, domain.BookingStatusConfirmed.String(), since).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count confirmed bookings: %w", err)
	}

	span.SetAttributes(attribute.Int64("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}
