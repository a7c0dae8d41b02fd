package model

import "time"

// Subscription holds the information for a browser push subscription.
// The endpoint is the recipient's identity: it is globally unique and
// every room-membership operation is keyed by it.
type Subscription struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Endpoint       string    `gorm:"uniqueIndex;not null" json:"endpoint"`
	P256DH         string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth           string    `gorm:"not null" json:"auth"`
	ExpirationTime *int64    `json:"expirationTime,omitempty"` // epoch milliseconds
	CreatedAt      time.Time `gorm:"not null" json:"createdAt"`
}
