package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JobState represents the lifecycle state of an async reservation job
type JobState string

const (
	JobStateQueued     JobState = "QUEUED"
	JobStateProcessing JobState = "PROCESSING"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateFailed     JobState = "FAILED"
	JobStateCancelled  JobState = "CANCELLED"
)

// JobType tags the payload so worker dispatch is exhaustive
type JobType string

const (
	JobTypeSeatReservation JobType = "seat_reservation"
)

// SeatReservationPayload is the payload for seat_reservation jobs
type SeatReservationPayload struct {
	UserID         string   `json:"user_id"`
	EventID        string   `json:"event_id"`
	SeatIDs        []string `json:"seat_ids"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// Validate validates the payload fields
func (p *SeatReservationPayload) Validate() error {
	if p.UserID == "" {
		return ErrInvalidUserID
	}
	if p.EventID == "" {
		return ErrInvalidEventID
	}
	if len(p.SeatIDs) == 0 {
		return ErrNoSeatsRequested
	}
	if p.IdempotencyKey == "" {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

// ReservationJob represents an asynchronous seat reservation request
type ReservationJob struct {
	ID       string                 `json:"id"`
	Type     JobType                `json:"type"`
	Payload  SeatReservationPayload `json:"payload"`
	State    JobState               `json:"state"`
	Attempts int                    `json:"attempts"`
	// Result holds the serialized SeatReservationResult once terminal
	Result     string     `json:"result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewSeatReservationJob creates a queued job for the given request.
// Seat IDs are sorted so equivalent requests hash identically.
func NewSeatReservationJob(payload SeatReservationPayload) *ReservationJob {
	sorted := make([]string, len(payload.SeatIDs))
	copy(sorted, payload.SeatIDs)
	sort.Strings(sorted)
	payload.SeatIDs = sorted

	now := time.Now()
	return &ReservationJob{
		ID:         generateJobID(payload.UserID, payload.EventID, sorted),
		Type:       JobTypeSeatReservation,
		Payload:    payload,
		State:      JobStateQueued,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
}

// generateJobID derives a compact identifier from the request identity.
// The timestamp component keeps deliberate re-submissions distinct; the
// idempotency key, not the job ID, is the de-dup authority.
func generateJobID(userID, eventID string, sortedSeatIDs []string) string {
	payload := fmt.Sprintf("%s|%s|%s|%d",
		userID, eventID, strings.Join(sortedSeatIDs, ","), time.Now().UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:32]
}

// IsTerminal checks if the job has reached a final state
func (j *ReservationJob) IsTerminal() bool {
	switch j.State {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// CanCancel checks if the job may still be cancelled. Only queued jobs
// can be cancelled; a processing job is already touching seat state.
func (j *ReservationJob) CanCancel() bool {
	return j.State == JobStateQueued
}

// QueueStats is a snapshot of queue depth and processing counters
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}
