package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires all HTTP routes
func RegisterRoutes(r *gin.Engine, booking *BookingHandler, job *JobHandler, health *HealthHandler) {
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)

	v1 := r.Group("/api/v1")
	{
		reservations := v1.Group("/reservations")
		{
			reservations.POST("", booking.ReserveCapacity)
			reservations.POST("/seats", job.EnqueueSeatReservation)
			reservations.GET("/seats/:job_id", job.GetSeatReservationStatus)
			reservations.DELETE("/seats/:job_id", job.CancelSeatReservation)
			reservations.GET("/:booking_id", booking.GetBooking)
			reservations.DELETE("/:booking_id", booking.CancelBooking)
		}

		v1.GET("/queue/stats", job.GetQueueStats)
		v1.GET("/events/:event_id/seats", booking.GetSeatAvailability)
	}
}
