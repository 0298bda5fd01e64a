package dto

import (
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
)

// ReserveCapacityRequest represents a request to reserve pooled capacity
type ReserveCapacityRequest struct {
	EventID        string `json:"event_id" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1,max=10"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CapacityReservation is the result of a capacity reservation
type CapacityReservation struct {
	BookingID  string  `json:"booking_id"`
	Status     string  `json:"status"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	EventID        string    `json:"event_id"`
	Quantity       int       `json:"quantity"`
	TotalPrice     float64   `json:"total_price"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromBooking converts a domain Booking to a BookingResponse
func FromBooking(b *domain.Booking) *BookingResponse {
	return &BookingResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		EventID:        b.EventID,
		Quantity:       b.Quantity,
		TotalPrice:     b.TotalPrice,
		Status:         b.Status.String(),
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      b.CreatedAt,
	}
}

// CancelBookingResponse represents the response after cancelling a booking
type CancelBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// SeatAvailabilityResponse lists the seats of an event and their state
type SeatAvailabilityResponse struct {
	EventID   string          `json:"event_id"`
	Total     int             `json:"total"`
	Available int             `json:"available"`
	Seats     []*SeatResponse `json:"seats"`
}

// SeatResponse represents a single seat with its derived booking state
type SeatResponse struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Row       string `json:"row"`
	Number    int    `json:"number"`
	IsBlocked bool   `json:"is_blocked"`
	IsBooked  bool   `json:"is_booked"`
}

// FromSeatView converts a domain SeatView to a SeatResponse
func FromSeatView(v *domain.SeatView) *SeatResponse {
	return &SeatResponse{
		ID:        v.ID,
		SectionID: v.SectionID,
		Row:       v.Row,
		Number:    v.Number,
		IsBlocked: v.IsBlocked,
		IsBooked:  v.IsBooked,
	}
}
