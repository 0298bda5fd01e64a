package domain

import "time"

// Seat represents a single reservable seat. A seat's booked status is
// derived: it is booked iff a SeatBooking row exists whose parent Booking
// is CONFIRMED. IsBlocked is an administrative hold independent of that.
type Seat struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Row       string `json:"row"`
	Number    int    `json:"number"`
	IsBlocked bool   `json:"is_blocked"`
}

// SeatBooking links a booking to a seat at the price paid
type SeatBooking struct {
	BookingID string    `json:"booking_id"`
	SeatID    string    `json:"seat_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// SeatView is a read-model row for availability listings: the seat plus
// its derived booked state
type SeatView struct {
	Seat
	EventID  string `json:"event_id"`
	IsBooked bool   `json:"is_booked"`
}

// IsAvailable checks if the seat can be booked
func (v *SeatView) IsAvailable() bool {
	return !v.IsBooked && !v.IsBlocked
}

// Per-seat failure reasons
const (
	SeatFailureNotFound      = "not_found"
	SeatFailureBlocked       = "blocked"
	SeatFailureAlreadyBooked = "already_booked"
	SeatFailureWrongEvent    = "wrong_event"
)

// Result-level failure reasons
const (
	FailureSeatsContested       = "seats_contested"
	FailureSeatsRejected        = "seats_rejected"
	FailureInsufficientCapacity = "insufficient_capacity"
)

// SeatFailure pairs a seat with the reason it could not be booked
type SeatFailure struct {
	SeatID string `json:"seat_id"`
	Reason string `json:"reason"`
}

// SeatReservationResult is the outcome of a seat reservation attempt.
// All-or-nothing: BookingID is set only when every requested seat was free.
type SeatReservationResult struct {
	Success       bool          `json:"success"`
	BookingID     string        `json:"booking_id,omitempty"`
	TotalPrice    float64       `json:"total_price,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	SeatFailures  []SeatFailure `json:"seat_failures,omitempty"`
}
