package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminHandler serves the back-office reservation and settings endpoints
type AdminHandler struct {
	reservations *services.ReservationService
	settings     *services.SettingsResolver
	exporter     *services.ExportService
	logger       *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	reservations *services.ReservationService,
	settings *services.SettingsResolver,
	exporter *services.ExportService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		reservations: reservations,
		settings:     settings,
		exporter:     exporter,
		logger:       logger,
	}
}

// ============================================================================
// RESERVATIONS
// ============================================================================

// ListReservations handles GET /api/v1/admin/reservations
// @Summary List reservations
// @Tags Admin
// @Produce json
// @Param status query string false "Reservation status"
// @Param room_id query string false "Room ID"
// @Param from query string false "Stays checking out after (YYYY-MM-DD)"
// @Param to query string false "Stays checking in before (YYYY-MM-DD)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Router /admin/reservations [get]
func (h *AdminHandler) ListReservations(c *gin.Context) {
	filter, err := parseReservationFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	reservations, total, err := h.reservations.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": reservations,
		"total":        total,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// GetReservation handles GET /api/v1/admin/reservations/:id
func (h *AdminHandler) GetReservation(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.reservations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// UpdateReservation handles PUT /api/v1/admin/reservations/:id
// @Summary Update a reservation
// @Description Partial update. Date, room or guest changes are re-validated against availability.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body models.UpdateReservationRequest true "Fields to change"
// @Success 200 {object} models.Reservation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/reservations/{id} [put]
func (h *AdminHandler) UpdateReservation(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.reservations.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// DeleteReservation handles DELETE /api/v1/admin/reservations/:id
func (h *AdminHandler) DeleteReservation(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.reservations.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reservation deleted"})
}

// ExportReservations handles GET /api/v1/admin/reservations/export.
// Accepts the same filters as ListReservations, without paging.
func (h *AdminHandler) ExportReservations(c *gin.Context) {
	filter, err := parseReservationFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var buf bytes.Buffer
	count, err := h.exporter.WriteReservationsXLSX(c.Request.Context(), &buf, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("reservations-%s.xlsx", time.Now().Format("20060102"))
	h.logger.WithField("rows", count).Info("Reservations exported")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ============================================================================
// SETTINGS
// ============================================================================

// GetBookingSettings handles GET /api/v1/admin/settings/booking
func (h *AdminHandler) GetBookingSettings(c *gin.Context) {
	settings, err := h.settings.Resolve(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateBookingSettings handles PUT /api/v1/admin/settings/booking.
// The body replaces the whole policy.
func (h *AdminHandler) UpdateBookingSettings(c *gin.Context) {
	var settings models.BookingSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.settings.Save(c.Request.Context(), settings); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

func parseReservationFilter(c *gin.Context) (models.ReservationFilter, error) {
	filter := models.ReservationFilter{Limit: defaultListLimit}

	if v := c.Query("status"); v != "" {
		status := models.ReservationStatus(v)
		if !status.IsValid() {
			return filter, fmt.Errorf("unknown status %q", v)
		}
		filter.Status = &status
	}
	if v := c.Query("room_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, fmt.Errorf("room_id must be a valid UUID")
		}
		filter.RoomID = &id
	}
	if v := c.Query("from"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return filter, fmt.Errorf("from: %w", err)
		}
		filter.From = &d
	}
	if v := c.Query("to"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return filter, fmt.Errorf("to: %w", err)
		}
		filter.To = &d
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must not be negative")
		}
		filter.Offset = n
	}
	return filter, nil
}
