package model

import "time"

// User is a dashboard account. Only room/config management requires one;
// subscribing and room capabilities work without login.
type User struct {
	ID           int64     `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;size:256;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
