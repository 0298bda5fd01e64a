package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/dto"
	"github.com/seatrush/reservation-engine/internal/service"
	"github.com/seatrush/reservation-engine/pkg/response"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// JobHandler handles async seat reservation HTTP requests
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// EnqueueSeatReservation handles POST /api/v1/reservations/seats
// Seat reservations are queued and processed by the worker pool; the
// client polls the returned job ID for the outcome.
func (h *JobHandler) EnqueueSeatReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.job.enqueue")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.ReserveSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	if key := c.GetHeader("X-Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("event_id", req.EventID),
		attribute.Int("seat_count", len(req.SeatIDs)),
	)

	result, err := h.jobService.EnqueueSeatReservation(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("job_id", result.JobID))
	span.SetStatus(codes.Ok, "")
	response.Accepted(c, result)
}

// GetSeatReservationStatus handles GET /api/v1/reservations/seats/:job_id
func (h *JobHandler) GetSeatReservationStatus(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.job.get_status")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	jobID := c.Param("job_id")
	span.SetAttributes(attribute.String("job_id", jobID))

	result, err := h.jobService.GetResult(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// CancelSeatReservation handles DELETE /api/v1/reservations/seats/:job_id
// Only jobs still waiting in the queue can be cancelled.
func (h *JobHandler) CancelSeatReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.job.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	jobID := c.Param("job_id")
	span.SetAttributes(attribute.String("job_id", jobID))

	if err := h.jobService.Cancel(ctx, jobID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, gin.H{"job_id": jobID, "state": "CANCELLED"})
}

// GetQueueStats handles GET /api/v1/queue/stats
func (h *JobHandler) GetQueueStats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.job.queue_stats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	stats, err := h.jobService.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, stats)
}
