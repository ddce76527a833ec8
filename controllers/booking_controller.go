package controllers

import (
	"net/http"

	"room-booking/services"
	"room-booking/utils"

	"github.com/gin-gonic/gin"
)

type BookingController struct {
	Service *services.BookingService
}

func NewBookingController(s *services.BookingService) *BookingController {
	return &BookingController{Service: s}
}

// CreateBooking POST /api/bookings
func (bc *BookingController) CreateBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "roomId, checkInDate and checkOutDate are required")
		return
	}

	booking, err := bc.Service.CreateBooking(c.Request.Context(), userID, req.RoomID, req.CheckInDate, req.CheckOutDate)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.JSONSuccess(c, http.StatusCreated, toBookingResponse(booking))
}

// ListBookings GET /api/bookings?status=&page=&pageSize=
func (bc *BookingController) ListBookings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := queryInt(c, "pageSize")
	if !ok {
		return
	}

	result, err := bc.Service.ListUserBookings(c.Request.Context(), userID, c.Query("status"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]BookingResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toBookingResponse(&result.Items[i]))
	}
	utils.JSONSuccess(c, http.StatusOK, BookingListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// GetBooking GET /api/bookings/:id
func (bc *BookingController) GetBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := bc.Service.GetBooking(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toBookingResponse(booking))
}

// CancelBooking POST /api/bookings/:id/cancel
func (bc *BookingController) CancelBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CancelBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload")
			return
		}
	}

	booking, err := bc.Service.CancelBooking(c.Request.Context(), id, userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toBookingResponse(booking))
}

// CheckAvailability GET /api/rooms/:id/availability?dateFrom=&dateTo=
func (bc *BookingController) CheckAvailability(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	from, to := c.Query("dateFrom"), c.Query("dateTo")
	if from == "" || to == "" {
		badRequest(c, "dateFrom and dateTo are required")
		return
	}

	result, err := bc.Service.CheckAvailability(c.Request.Context(), id, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, result)
}
