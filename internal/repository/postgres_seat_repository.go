package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// PostgresSeatRepository implements SeatRepository using PostgreSQL with pgxpool
type PostgresSeatRepository struct {
	pool *pgxpool.Pool
}

var _ SeatRepository = (*PostgresSeatRepository)(nil)

// NewPostgresSeatRepository creates a new PostgresSeatRepository
func NewPostgresSeatRepository(pool *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{pool: pool}
}

// seatCheckRow is one requested seat's state as read inside the transaction
type seatCheckRow struct {
	id              string
	eventID         string
	isBlocked       bool
	isBooked        bool
	priceMultiplier float64
}

// ReserveSeats re-checks every requested seat against the latest committed
// state and books all of them atomically, or reports per-seat reasons.
// Runs under REPEATABLE READ; serialization failures surface as
// domain.ErrSerializationFailure for the caller's retry loop.
func (r *PostgresSeatRepository) ReserveSeats(ctx context.Context, booking *domain.Booking, seatIDs []string) (*domain.SeatReservationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", booking.EventID),
		attribute.String("user_id", booking.UserID),
		attribute.Int("seat_count", len(seatIDs)),
	)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Event capacity and pricing, read inside the transaction
	var available int
	var version int64
	var basePrice float64
	err = tx.QueryRow(ctx,
		`SELECT available_capacity, version, base_price FROM events WHERE id = $1`,
		booking.EventID,
	).Scan(&available, &version, &basePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "event not found")
			return nil, domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read event: %w", classifyPgError(err))
	}

	// Latest committed state of every requested seat. A seat is booked
	// iff a seat_bookings row points at a CONFIRMED booking.
	rows, err := tx.Query(ctx,
		`SELECT s.id, sec.event_id, s.is_blocked, sec.price_multiplier,
		        EXISTS (
		            SELECT 1 FROM seat_bookings sb
		            JOIN bookings b ON b.id = sb.booking_id
		            WHERE sb.seat_id = s.id AND b.status = $2
		        ) AS is_booked
		 FROM seats s
		 JOIN sections sec ON sec.id = s.section_id
		 WHERE s.id = ANY($1)`,
		seatIDs, domain.BookingStatusConfirmed.String(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to check seats: %w", classifyPgError(err))
	}

	checked := make(map[string]seatCheckRow, len(seatIDs))
	for rows.Next() {
		var row seatCheckRow
		if err := rows.Scan(&row.id, &row.eventID, &row.isBlocked, &row.priceMultiplier, &row.isBooked); err != nil {
			rows.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat row: %w", err)
		}
		checked[row.id] = row
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read seat rows: %w", classifyPgError(err))
	}

	// All-or-nothing: collect every rejection so the caller can re-offer
	// alternatives
	var failures []domain.SeatFailure
	for _, seatID := range seatIDs {
		row, ok := checked[seatID]
		switch {
		case !ok:
			failures = append(failures, domain.SeatFailure{SeatID: seatID, Reason: domain.SeatFailureNotFound})
		case row.eventID != booking.EventID:
			failures = append(failures, domain.SeatFailure{SeatID: seatID, Reason: domain.SeatFailureWrongEvent})
		case row.isBlocked:
			failures = append(failures, domain.SeatFailure{SeatID: seatID, Reason: domain.SeatFailureBlocked})
		case row.isBooked:
			failures = append(failures, domain.SeatFailure{SeatID: seatID, Reason: domain.SeatFailureAlreadyBooked})
		}
	}

	if len(failures) > 0 {
		span.SetAttributes(attribute.Int("rejected_seats", len(failures)))
		span.SetStatus(codes.Ok, "seats rejected")
		return &domain.SeatReservationResult{
			Success:       false,
			FailureReason: domain.FailureSeatsRejected,
			SeatFailures:  failures,
		}, nil
	}

	// Capacity exhaustion is a business rejection like a taken seat, so
	// async callers record it as a result rather than a failed job
	if len(seatIDs) > available {
		span.SetStatus(codes.Ok, "insufficient capacity")
		return &domain.SeatReservationResult{
			Success:       false,
			FailureReason: domain.FailureInsufficientCapacity,
		}, nil
	}

	// Capacity decrement gated on the version read in this transaction
	tag, err := tx.Exec(ctx,
		`UPDATE events
		 SET available_capacity = available_capacity - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		len(seatIDs), booking.EventID, version,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to decrement capacity: %w", classifyPgError(err))
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "version conflict")
		return nil, domain.ErrVersionConflict
	}

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Status = domain.BookingStatusConfirmed
	booking.Quantity = len(seatIDs)

	var totalPrice float64
	for _, seatID := range seatIDs {
		totalPrice += basePrice * checked[seatID].priceMultiplier
	}
	booking.TotalPrice = totalPrice

	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (
			id, user_id, event_id, quantity, total_price, status,
			idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		booking.ID,
		booking.UserID,
		booking.EventID,
		booking.Quantity,
		booking.TotalPrice,
		booking.Status.String(),
		booking.IdempotencyKey,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			span.SetStatus(codes.Ok, "duplicate idempotency key")
			return nil, domain.ErrDuplicateIdempotencyKey
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert booking: %w", classifyPgError(err))
	}

	for _, seatID := range seatIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO seat_bookings (booking_id, seat_id, price, created_at)
			 VALUES ($1, $2, $3, $4)`,
			booking.ID, seatID, basePrice*checked[seatID].priceMultiplier, now,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to insert seat booking: %w", classifyPgError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit seat reservation: %w", classifyPgError(err))
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return &domain.SeatReservationResult{
		Success:    true,
		BookingID:  booking.ID,
		TotalPrice: totalPrice,
	}, nil
}

// ListByEvent lists the event's seats with derived booking state
func (r *PostgresSeatRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.SeatView, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.list_by_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.section_id, s.row, s.number, s.is_blocked, sec.event_id,
		        EXISTS (
		            SELECT 1 FROM seat_bookings sb
		            JOIN bookings b ON b.id = sb.booking_id
		            WHERE sb.seat_id = s.id AND b.status = $2
		        ) AS is_booked
		 FROM seats s
		 JOIN sections sec ON sec.id = s.section_id
		 WHERE sec.event_id = $1
		 ORDER BY s.section_id, s.row, s.number`,
		eventID, domain.BookingStatusConfirmed.String(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	var seats []*domain.SeatView
	for rows.Next() {
		view := &domain.SeatView{}
		if err := rows.Scan(&view.ID, &view.SectionID, &view.Row, &view.Number,
			&view.IsBlocked, &view.EventID, &view.IsBooked); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat view: %w", err)
		}
		seats = append(seats, view)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read seat views: %w", err)
	}

	span.SetAttributes(attribute.Int("seat_count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return seats, nil
}
