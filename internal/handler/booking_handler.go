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

// BookingHandler handles capacity reservation HTTP requests
type BookingHandler struct {
	capacityService service.CapacityService
	seatService     service.SeatService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(capacityService service.CapacityService, seatService service.SeatService) *BookingHandler {
	return &BookingHandler{
		capacityService: capacityService,
		seatService:     seatService,
	}
}

// ReserveCapacity handles POST /api/v1/reservations
// Quantity-based reservations run inline on the request path.
func (h *BookingHandler) ReserveCapacity(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.reserve_capacity")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.ReserveCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	// Header takes precedence over the body field
	if key := c.GetHeader("X-Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("event_id", req.EventID),
		attribute.Int("quantity", req.Quantity),
	)

	result, err := h.capacityService.Reserve(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", result.BookingID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// GetBooking handles GET /api/v1/reservations/:booking_id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("booking_id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.capacityService.GetBooking(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// CancelBooking handles DELETE /api/v1/reservations/:booking_id
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("booking_id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.capacityService.Cancel(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetSeatAvailability handles GET /api/v1/events/:event_id/seats
func (h *BookingHandler) GetSeatAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.seat_availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("event_id")
	span.SetAttributes(attribute.String("event_id", eventID))

	result, err := h.seatService.GetSeatAvailability(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
