package model

import "time"

// Room is a named notification topic. Its token is an unguessable
// capability: anyone holding it may join the room or send to it without
// logging in. The token never changes after creation.
type Room struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	TokenID     string    `gorm:"uniqueIndex;size:64;not null" json:"tokenId"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
}

// RoomMembership joins a subscription to a room. Unique per pair.
type RoomMembership struct {
	ID             int64 `gorm:"primaryKey"`
	RoomID         int64 `gorm:"uniqueIndex:idx_room_subscription;not null"`
	SubscriptionID int64 `gorm:"uniqueIndex:idx_room_subscription;not null"`

	// Associations
	Room         Room         `gorm:"constraint:OnDelete:CASCADE"`
	Subscription Subscription `gorm:"constraint:OnDelete:CASCADE"`
}
