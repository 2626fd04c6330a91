package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/riadtaziri/booking-backend/internal/middleware"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string                          `json:"error"`
	Message   string                          `json:"message"`
	Code      string                          `json:"code,omitempty"`
	Reason    string                          `json:"reason,omitempty"`
	Conflicts []models.ConflictingReservation `json:"conflictingReservations,omitempty"`
}

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation: http.StatusBadRequest,
	services.KindPolicy:     http.StatusBadRequest,
	services.KindNotFound:   http.StatusNotFound,
	services.KindConflict:   http.StatusConflict,
	services.KindForbidden:  http.StatusForbidden,
}

// guestMessages replace the diagnostic message for anonymous callers
var guestMessages = map[string]string{
	services.ReasonBookingConflict: "Sorry, this room is no longer available for the selected dates. Please choose different dates.",
	services.ReasonRoomUnavailable: "Sorry, this room cannot be booked at the moment.",
	services.ReasonClosedDates:     "We are closed on some of the selected dates.",
	services.ReasonCapacity:        "This room cannot accommodate that many guests.",
	services.ReasonInvalidDates:    "Please check your arrival and departure dates.",
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    "INVALID_REQUEST",
	})
}

// respondError translates a service error into its HTTP status. Errors that
// are not BookingErrors are logged and returned as 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	be, ok := services.AsBookingError(err)
	if !ok {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
			Code:    "INTERNAL_ERROR",
		})
		return
	}

	status, known := kindStatus[be.Kind]
	if !known {
		status = http.StatusInternalServerError
	}

	message := be.Message
	if user, authed := middleware.GetUserContext(c); !authed || !user.IsAdmin() {
		if friendly, found := guestMessages[be.Reason]; found {
			message = friendly
		}
	}

	c.JSON(status, ErrorResponse{
		Error:     string(be.Kind),
		Message:   message,
		Reason:    be.Reason,
		Conflicts: be.Conflicts,
	})
}
