package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Jaylaelike/noksom-notify/internal/model"
)

// roomResponse is the API shape of a room, with the caller's membership
// flag when an endpoint identity was supplied.
type roomResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	TokenID      string `json:"tokenId"`
	IsSubscribed bool   `json:"isSubscribed"`
}

// ListRooms returns all rooms. When the caller identifies itself with an
// endpoint query parameter, each room carries its membership flag.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notification rooms"})
		return
	}

	joined := make(map[int64]bool)
	if raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint"); ok && raw != "" {
		sub, err := h.store.GetSubscriptionByEndpoint(ctx, raw)
		if err == nil {
			ids, err := h.store.RoomIDsForSubscription(ctx, sub.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notification rooms"})
				return
			}
			for _, id := range ids {
				joined[id] = true
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notification rooms"})
			return
		}
	}

	responses := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		responses = append(responses, roomResponse{
			ID:           room.ID,
			Name:         room.Name,
			Description:  room.Description,
			TokenID:      room.TokenID,
			IsSubscribed: joined[room.ID],
		})
	}
	c.JSON(http.StatusOK, responses)
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateRoom creates a room with a freshly generated capability token.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := model.Room{Name: req.Name, Description: req.Description}
	if err := h.store.CreateRoom(c.Request.Context(), &room); err != nil {
		log.Printf("Error creating room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification room"})
		return
	}

	c.JSON(http.StatusCreated, roomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		TokenID:     room.TokenID,
	})
}

type updateRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateRoom edits a room's name and description. The token never changes.
func (h *Handler) UpdateRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.store.UpdateRoom(c.Request.Context(), roomID, req.Name, req.Description)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteRoom removes a room and its memberships. History records keep
// their room reference.
func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	err = h.store.DeleteRoom(c.Request.Context(), roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification room"})
		return
	}

	c.Status(http.StatusNoContent)
}

type membershipRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// JoinRoom subscribes the identified recipient to a room. Joining a room
// twice reports success without duplicating the membership.
func (h *Handler) JoinRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification room not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to notification room"})
		}
		return
	}

	h.join(c, roomID, req.Endpoint)
}

// JoinRoomByToken is the capability form of JoinRoom: knowing the token
// is sufficient, no login involved.
func (h *Handler) JoinRoomByToken(c *gin.Context) {
	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.GetRoomByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid room token ID"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to notification room"})
		}
		return
	}

	h.join(c, room.ID, req.Endpoint)
}

func (h *Handler) join(c *gin.Context, roomID int64, endpoint string) {
	ctx := c.Request.Context()
	sub, err := h.store.GetSubscriptionByEndpoint(ctx, endpoint)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You must be subscribed to push notifications first"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to notification room"})
		}
		return
	}

	already, err := h.store.JoinRoom(ctx, roomID, sub.ID)
	if err != nil {
		log.Printf("Error subscribing to room %d: %v", roomID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to notification room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "alreadySubscribed": already})
}

// LeaveRoom removes the recipient's membership. Leaving a room it never
// joined is a no-op success.
func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.store.GetSubscriptionByEndpoint(ctx, req.Endpoint)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No subscription found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe from notification room"})
		}
		return
	}

	if err := h.store.LeaveRoom(ctx, roomID, sub.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe from notification room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
