package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/response"
)

// handleError maps domain errors onto HTTP status codes
func handleError(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInsufficientCapacity):
		response.Error(c, http.StatusConflict, "INSUFFICIENT_CAPACITY", err.Error(), "")
	case errors.Is(err, domain.ErrCapacityContention):
		response.Error(c, http.StatusConflict, "CAPACITY_CONTENTION", err.Error(), "")
	case domain.IsConflictError(err):
		response.Conflict(c, err.Error())
	case domain.IsUnavailableError(err):
		response.ServiceUnavailable(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
