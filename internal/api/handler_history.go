package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jaylaelike/noksom-notify/internal/model"
)

const historyPageSize = 10

type historyEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon"`
	Data      any       `json:"data"`
	RoomID    *int64    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
}

func toHistoryEntries(notifications []model.Notification) []historyEntry {
	entries := make([]historyEntry, 0, len(notifications))
	for _, n := range notifications {
		var data any
		if n.Data != nil {
			// Stored data was marshaled by us; a decode failure would
			// mean a corrupted row, surface it as null.
			if err := json.Unmarshal([]byte(*n.Data), &data); err != nil {
				data = nil
			}
		}
		entries = append(entries, historyEntry{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			Icon:      n.Icon,
			Data:      data,
			RoomID:    n.RoomID,
			CreatedAt: n.CreatedAt,
		})
	}
	return entries
}

// GetHistory returns the most recent notifications, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	notifications, err := h.store.ListNotifications(c.Request.Context(), historyPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, toHistoryEntries(notifications))
}

// GetRoomHistory returns the most recent notifications for one room.
// A deleted room simply yields an empty feed; history is preserved but
// no longer addressable through it.
func (h *Handler) GetRoomHistory(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	notifications, err := h.store.ListRoomNotifications(c.Request.Context(), roomID, historyPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, toHistoryEntries(notifications))
}
