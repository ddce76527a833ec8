package controllers

import (
	"net/http"

	"room-booking/services"
	"room-booking/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RoomController struct {
	Service *services.RoomService
}

func NewRoomController(s *services.RoomService) *RoomController {
	return &RoomController{Service: s}
}

// SearchRooms GET /api/rooms
func (rc *RoomController) SearchRooms(c *gin.Context) {
	filter := services.RoomFilter{
		Location:      c.Query("location"),
		Status:        c.Query("status"),
		AvailableFrom: c.Query("availableFrom"),
		AvailableTo:   c.Query("availableTo"),
	}

	var ok bool
	if filter.MinCapacity, ok = queryInt(c, "minCapacity"); !ok {
		return
	}
	if filter.Page, ok = queryInt(c, "page"); !ok {
		return
	}
	if filter.PageSize, ok = queryInt(c, "pageSize"); !ok {
		return
	}
	if raw := c.Query("maxPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, "invalid maxPrice")
			return
		}
		filter.MaxPrice = &price
	}

	page, err := rc.Service.SearchRooms(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]RoomResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toRoomResponse(&page.Items[i]))
	}
	utils.JSONSuccess(c, http.StatusOK, RoomListResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// GetRoom GET /api/rooms/:id
func (rc *RoomController) GetRoom(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	room, err := rc.Service.FindRoomByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toRoomResponse(room))
}

// CreateRoom POST /api/rooms (admin)
func (rc *RoomController) CreateRoom(c *gin.Context) {
	var in services.RoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	room, err := rc.Service.CreateRoom(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, toRoomResponse(room))
}

// UpdateRoom PATCH /api/rooms/:id (admin)
func (rc *RoomController) UpdateRoom(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.RoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	room, err := rc.Service.UpdateRoom(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toRoomResponse(room))
}
