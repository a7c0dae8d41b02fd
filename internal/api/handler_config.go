package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jaylaelike/noksom-notify/internal/model"
)

type webhookConfigRequest struct {
	Endpoint string `json:"endpoint"`
	AuthKey  string `json:"authKey"`
	Headers  string `json:"headers"`
	Payload  string `json:"payload"`
}

// GetWebhookConfig returns the mirror-webhook configuration, or empty
// fields when none has been saved.
func (h *Handler) GetWebhookConfig(c *gin.Context) {
	cfg, err := h.store.GetWebhookConfig(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load configuration"})
		return
	}
	if cfg == nil {
		cfg = &model.WebhookConfig{}
	}
	c.JSON(http.StatusOK, gin.H{
		"endpoint": cfg.Endpoint,
		"authKey":  cfg.AuthKey,
		"headers":  cfg.Headers,
		"payload":  cfg.Payload,
	})
}

// PutWebhookConfig replaces the mirror-webhook configuration wholesale.
// Headers and payload must be valid JSON when present; malformed values
// are rejected here rather than tolerated at dispatch time.
func (h *Handler) PutWebhookConfig(c *gin.Context) {
	var req webhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if (req.Headers != "" && !json.Valid([]byte(req.Headers))) ||
		(req.Payload != "" && !json.Valid([]byte(req.Payload))) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON in headers or payload"})
		return
	}

	cfg := model.WebhookConfig{
		Endpoint: req.Endpoint,
		AuthKey:  req.AuthKey,
		Headers:  req.Headers,
		Payload:  req.Payload,
	}
	if err := h.store.PutWebhookConfig(c.Request.Context(), &cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
