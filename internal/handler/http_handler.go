package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/repository"
)

// HTTPHandler serves the room-creation endpoint.
type HTTPHandler struct {
	rooms repository.RoomRepository
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(rooms repository.RoomRepository) *HTTPHandler {
	return &HTTPHandler{rooms: rooms}
}

type createRoomRequest struct {
	Creator string `json:"creator" binding:"required"`
}

// CreateRoom mints a fresh room ID for a creator identity.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Creator is required"})
		return
	}

	room := &domain.Room{Creator: req.Creator}
	if err := h.rooms.Create(c.Request.Context(), room); err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("room creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"roomId": room.RoomID})
}

// RegisterRoutes mounts the HTTP API on the gin engine.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/rooms", h.CreateRoom)
}
