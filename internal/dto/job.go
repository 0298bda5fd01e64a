package dto

import (
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
)

// ReserveSeatsRequest represents a request to reserve specific seats
// asynchronously through the job queue
type ReserveSeatsRequest struct {
	EventID        string   `json:"event_id" binding:"required"`
	UserID         string   `json:"user_id" binding:"required"`
	SeatIDs        []string `json:"seat_ids" binding:"required,min=1,max=10"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// EnqueueResponse represents the response after enqueueing a reservation job
type EnqueueResponse struct {
	JobID   string `json:"job_id"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// JobStatus represents a job's state and result for client polling
type JobStatus struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	// Result holds the seat reservation outcome once COMPLETED
	Result *domain.SeatReservationResult `json:"result,omitempty"`
	// Pending is true while the job is still QUEUED or PROCESSING
	Pending    bool       `json:"pending"`
	LastError  string     `json:"last_error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// QueueStatsResponse is a snapshot of the reservation queue
type QueueStatsResponse struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// FromQueueStats converts domain QueueStats to a response
func FromQueueStats(s *domain.QueueStats) *QueueStatsResponse {
	return &QueueStatsResponse{
		Waiting:   s.Waiting,
		Active:    s.Active,
		Completed: s.Completed,
		Failed:    s.Failed,
		Total:     s.Total,
	}
}
