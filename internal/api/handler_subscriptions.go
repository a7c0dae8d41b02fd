package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Jaylaelike/noksom-notify/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint       string `json:"endpoint" binding:"required"`
	P256DH         string `json:"p256dh" binding:"required"`
	Auth           string `json:"auth" binding:"required"`
	ExpirationTime *int64 `json:"expirationTime"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscription := model.Subscription{
		Endpoint:       req.Endpoint,
		P256DH:         req.P256DH,
		Auth:           req.Auth,
		ExpirationTime: req.ExpirationTime,
	}

	if err := h.store.UpsertSubscription(c.Request.Context(), &subscription); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DeleteSubscriptionByEndpoint(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam extracts a query parameter without URL decoding. Push
// endpoints contain characters that a decode round-trip would mangle.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the subscription for an endpoint along with
// the rooms it has joined.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	ctx := c.Request.Context()
	subscription, err := h.store.GetSubscriptionByEndpoint(ctx, raw)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		}
		return
	}

	roomIDs, err := h.store.RoomIDsForSubscription(ctx, subscription.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if roomIDs == nil {
		roomIDs = []int64{}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               subscription.ID,
		"endpoint":         subscription.Endpoint,
		"expirationTime":   subscription.ExpirationTime,
		"subscribed_rooms": roomIDs,
	})
}

type resubscribeRequest struct {
	OldSubscription struct {
		Endpoint string `json:"endpoint"`
	} `json:"oldSubscription"`
	NewSubscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256DH string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
		ExpirationTime *int64 `json:"expirationTime"`
	} `json:"newSubscription"`
}

// Resubscribe handles push-endpoint rotation: the old record is matched
// by its endpoint and rewritten with the new endpoint and keys, or a
// fresh record is created when no match exists.
func (h *Handler) Resubscribe(c *gin.Context) {
	var req resubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.OldSubscription.Endpoint == "" || req.NewSubscription.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription data"})
		return
	}

	next := model.Subscription{
		Endpoint:       req.NewSubscription.Endpoint,
		P256DH:         req.NewSubscription.Keys.P256DH,
		Auth:           req.NewSubscription.Keys.Auth,
		ExpirationTime: req.NewSubscription.ExpirationTime,
	}

	if err := h.store.RotateSubscription(c.Request.Context(), req.OldSubscription.Endpoint, &next); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process resubscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
