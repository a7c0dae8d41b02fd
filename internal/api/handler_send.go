package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jaylaelike/noksom-notify/internal/dispatch"
)

// Send accepts a dispatch intent and runs one best-effort fan-out.
// Callers get a structured result; server faults are logged with detail
// but reported generically.
func (h *Handler) Send(c *gin.Context) {
	var intent dispatch.Intent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: title and body"})
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), &intent)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrTargetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid room token ID"})
		case errors.Is(err, dispatch.ErrNoRecipients):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No active subscriptions found"})
		default:
			log.Printf("Error sending notification: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to send notification"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"sent":           result.Sent,
		"total":          result.Total,
		"notificationId": result.NotificationID,
		"roomId":         result.RoomID,
	})
}
