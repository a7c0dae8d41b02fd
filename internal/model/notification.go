package model

import "time"

// Notification is one append-only history record per dispatch call.
// RoomID is a soft reference on purpose: deleting a room must not erase
// or mutate history, so there is no foreign key here.
type Notification struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Body      string    `gorm:"not null" json:"body"`
	Icon      string    `gorm:"size:512;not null" json:"icon"`
	Data      *string   `json:"-"` // JSON-serialized caller data
	RoomID    *int64    `gorm:"index" json:"roomId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}
