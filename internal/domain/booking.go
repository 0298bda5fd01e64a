package domain

import "time"

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// String returns the status as a string
func (s BookingStatus) String() string {
	return string(s)
}

// Booking represents a capacity or seat reservation.
// For a given non-empty idempotency key, at most one CONFIRMED booking exists.
type Booking struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	EventID        string        `json:"event_id"`
	Quantity       int           `json:"quantity"`
	TotalPrice     float64       `json:"total_price"`
	Status         BookingStatus `json:"status"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsConfirmed checks if the booking is confirmed
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// IsCancelled checks if the booking has been cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// Validate validates the booking request fields
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrInvalidUserID
	}
	if b.EventID == "" {
		return ErrInvalidEventID
	}
	if b.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// BookingEventType represents the type of a published engine event
type BookingEventType string

const (
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
	CapacityEventChanged  BookingEventType = "capacity.changed"
	SeatsEventBooked      BookingEventType = "seats.booked"
)

// BookingEvent is the payload published to the event stream
type BookingEvent struct {
	EventID   string           `json:"event_id"`
	Type      BookingEventType `json:"type"`
	Booking   *Booking         `json:"booking,omitempty"`
	SeatIDs   []string         `json:"seat_ids,omitempty"`
	Available int              `json:"available_capacity,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewBookingEvent creates an event payload for a booking state change
func NewBookingEvent(eventType BookingEventType, booking *Booking, eventID string) *BookingEvent {
	return &BookingEvent{
		EventID:   eventID,
		Type:      eventType,
		Booking:   booking,
		Timestamp: time.Now(),
	}
}

// Key returns the partition key for the event stream
func (e *BookingEvent) Key() string {
	if e.Booking != nil {
		return e.Booking.EventID
	}
	return e.EventID
}
