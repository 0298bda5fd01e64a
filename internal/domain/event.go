package domain

import "time"

// Event represents a bookable event with pooled capacity
type Event struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Capacity is the immutable total number of units
	Capacity int `json:"capacity"`
	// AvailableCapacity is the remaining units, mutated only inside a
	// successful booking or cancellation transaction
	AvailableCapacity int `json:"available_capacity"`
	// Version increments on every capacity mutation and gates
	// concurrent conditional updates
	Version int64 `json:"version"`
	// BasePrice is multiplied by the section price multiplier for
	// seat-level bookings
	BasePrice float64 `json:"base_price"`
	// SeatLevelBooking selects per-seat booking instead of pooled quantity
	SeatLevelBooking bool      `json:"seat_level_booking"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasCapacity checks whether the event can satisfy the requested quantity
func (e *Event) HasCapacity(quantity int) bool {
	return e.AvailableCapacity >= quantity
}

// Validate validates the event
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrInvalidEventID
	}
	if e.Capacity < 0 || e.AvailableCapacity < 0 || e.AvailableCapacity > e.Capacity {
		return ErrInvalidQuantity
	}
	return nil
}

// Section represents a seating section with its price multiplier
type Section struct {
	ID              string  `json:"id"`
	EventID         string  `json:"event_id"`
	Name            string  `json:"name"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

// SeatPrice computes the price of a seat in this section
func (s *Section) SeatPrice(basePrice float64) float64 {
	return basePrice * s.PriceMultiplier
}
