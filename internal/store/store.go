package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Jaylaelike/noksom-notify/internal/model"
)

// webhookConfigID is the fixed identity of the singleton config row.
// Callers never see it; the row is reachable only through
// GetWebhookConfig / PutWebhookConfig.
const webhookConfigID = 1

// Store defines the interface for all database operations.
type Store interface {
	// Subscriptions
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (*model.Subscription, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	DeleteSubscription(ctx context.Context, id int64) error
	RotateSubscription(ctx context.Context, oldEndpoint string, next *model.Subscription) error
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ListRoomSubscriptions(ctx context.Context, roomID int64) ([]model.Subscription, error)

	// Rooms and memberships
	CreateRoom(ctx context.Context, room *model.Room) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	GetRoomByToken(ctx context.Context, token string) (*model.Room, error)
	UpdateRoom(ctx context.Context, id int64, name, description string) error
	DeleteRoom(ctx context.Context, id int64) error
	JoinRoom(ctx context.Context, roomID, subscriptionID int64) (alreadyMember bool, err error)
	LeaveRoom(ctx context.Context, roomID, subscriptionID int64) error
	RoomIDsForSubscription(ctx context.Context, subscriptionID int64) ([]int64, error)

	// Webhook mirror configuration (singleton)
	GetWebhookConfig(ctx context.Context) (*model.WebhookConfig, error)
	PutWebhookConfig(ctx context.Context, cfg *model.WebhookConfig) error

	// Notification history
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	ListRoomNotifications(ctx context.Context, roomID int64, limit int) ([]model.Notification, error)

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// UpsertSubscription creates a subscription or refreshes the keys of an
// existing one, keyed by endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "expiration_time"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (*model.Subscription, error) {
	var sub model.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.Subscription{}).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.Subscription{}, id).Error
}

// RotateSubscription handles push-endpoint rotation: the record matched
// by the old endpoint is rewritten in place with the new endpoint and
// keys, so room memberships survive the rotation. If no record matches
// the old endpoint a fresh one is created.
func (s *gormStore) RotateSubscription(ctx context.Context, oldEndpoint string, next *model.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Subscription
		err := tx.First(&existing, "endpoint = ?", oldEndpoint).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(next).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"endpoint":        next.Endpoint,
			"p256dh":          next.P256DH,
			"auth":            next.Auth,
			"expiration_time": next.ExpirationTime,
		}).Error
	})
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListRoomSubscriptions fetches exactly the subscriptions joined to the
// given room.
func (s *gormStore) ListRoomSubscriptions(ctx context.Context, roomID int64) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).
		Joins("JOIN room_memberships rm ON rm.subscription_id = subscriptions.id").
		Where("rm.room_id = ?", roomID).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// CreateRoom persists a new room, generating its capability token.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.TokenID == "" {
		room.TokenID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *gormStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *gormStore) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *gormStore) GetRoomByToken(ctx context.Context, token string) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "token_id = ?", token).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateRoom edits name and description. The token is immutable.
func (s *gormStore) UpdateRoom(ctx context.Context, id int64, name, description string) error {
	res := s.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "description": description})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteRoom removes the room and its memberships. Notification history
// rows keep their room id; history is never rewritten.
func (s *gormStore) DeleteRoom(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&model.RoomMembership{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Room{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// JoinRoom subscribes a recipient to a room. Joining twice is a no-op
// reported as success.
func (s *gormStore) JoinRoom(ctx context.Context, roomID, subscriptionID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.RoomMembership{}).
		Where("room_id = ? AND subscription_id = ?", roomID, subscriptionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	membership := model.RoomMembership{RoomID: roomID, SubscriptionID: subscriptionID}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		return false, fmt.Errorf("join room %d: %w", roomID, err)
	}
	return false, nil
}

// LeaveRoom is a set-delete: it removes whatever memberships match and
// succeeds even if none did.
func (s *gormStore) LeaveRoom(ctx context.Context, roomID, subscriptionID int64) error {
	return s.db.WithContext(ctx).
		Where("room_id = ? AND subscription_id = ?", roomID, subscriptionID).
		Delete(&model.RoomMembership{}).Error
}

func (s *gormStore) RoomIDsForSubscription(ctx context.Context, subscriptionID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.RoomMembership{}).
		Where("subscription_id = ?", subscriptionID).
		Pluck("room_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetWebhookConfig returns the mirror configuration, or nil when none
// has been saved yet.
func (s *gormStore) GetWebhookConfig(ctx context.Context) (*model.WebhookConfig, error) {
	var cfg model.WebhookConfig
	err := s.db.WithContext(ctx).First(&cfg, webhookConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutWebhookConfig replaces the mirror configuration wholesale.
func (s *gormStore) PutWebhookConfig(ctx context.Context, cfg *model.WebhookConfig) error {
	cfg.ID = webhookConfigID
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "auth_key", "headers", "payload", "updated_at"}),
	}).Create(cfg).Error; err != nil {
		return fmt.Errorf("put webhook config: %w", err)
	}
	return nil
}

func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *gormStore) ListNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *gormStore) ListRoomNotifications(ctx context.Context, roomID int64, limit int) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *gormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
