package model

import "time"

// WebhookConfig is the singleton mirror-webhook configuration. The
// store exposes it through Get/Put only; exactly one logical row exists.
type WebhookConfig struct {
	ID        int64     `gorm:"primaryKey"`
	Endpoint  string    `gorm:"size:2048"`
	AuthKey   string    `gorm:"size:512"`
	Headers   string    // JSON object of extra headers
	Payload   string    // JSON payload template with {{key}} placeholders
	UpdatedAt time.Time `gorm:"not null"`
}
