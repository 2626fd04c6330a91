package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/middleware"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/riadtaziri/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves the public availability, pricing and reservation endpoints
type BookingHandler struct {
	engine       *services.BookingEngine
	reservations *services.ReservationService
	logger       *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(engine *services.BookingEngine, reservations *services.ReservationService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		engine:       engine,
		reservations: reservations,
		logger:       logger,
	}
}

// CheckAvailability handles POST /api/v1/reservations/availability.
// An unavailable room is a 200 with available=false.
// @Summary Check room availability
// @Tags Reservations
// @Accept json
// @Produce json
// @Param request body models.AvailabilityRequest true "Room, dates and guests"
// @Success 200 {object} services.AvailabilityResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reservations/availability [post]
func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	var req models.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// QuotePrice handles POST /api/v1/reservations/pricing
// @Summary Quote a stay
// @Tags Reservations
// @Accept json
// @Produce json
// @Param request body models.PricingRequest true "Room, dates and guests"
// @Success 200 {object} services.PriceQuote
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reservations/pricing [post]
func (h *BookingHandler) QuotePrice(c *gin.Context) {
	var req models.PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	quote, err := h.engine.QuotePrice(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// CreateReservation handles POST /api/v1/reservations
// @Summary Create a reservation
// @Description Books a room. Admin tokens may override pricing and status.
// @Tags Reservations
// @Accept json
// @Produce json
// @Param request body models.CreateReservationRequest true "Guest and stay details"
// @Success 201 {object} models.Reservation
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /reservations [post]
func (h *BookingHandler) CreateReservation(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	actor, source := actorAndSource(c)
	res, err := h.reservations.Create(c.Request.Context(), req, actor, source)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// LookupReservation handles GET /api/v1/reservations/reference/:reference?email=
// @Summary Look up a reservation by reference
// @Tags Reservations
// @Produce json
// @Param reference path string true "Booking reference"
// @Param email query string true "Guest email"
// @Success 200 {object} models.Reservation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reservations/reference/{reference} [get]
func (h *BookingHandler) LookupReservation(c *gin.Context) {
	res, err := h.reservations.GetByReference(c.Request.Context(), c.Param("reference"), c.Query("email"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// actorAndSource derives the caller and booking channel. Admin tokens book
// as the admin channel; otherwise the User-Agent decides mobile or website.
func actorAndSource(c *gin.Context) (*services.Actor, models.ReservationSource) {
	if user, ok := middleware.GetUserContext(c); ok {
		actor := &services.Actor{UserID: user.UserID, Email: user.Email, IsAdmin: user.IsAdmin()}
		if actor.IsAdmin {
			return actor, models.ReservationSourceAdmin
		}
		return actor, sourceFromDevice(c)
	}
	return nil, sourceFromDevice(c)
}

func sourceFromDevice(c *gin.Context) models.ReservationSource {
	if utils.ParseUserAgent(utils.GetUserAgent(c)).IsMobile() {
		return models.ReservationSourceMobile
	}
	return models.ReservationSourceWebsite
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
