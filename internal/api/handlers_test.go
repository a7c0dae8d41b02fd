package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Jaylaelike/noksom-notify/config"
	"github.com/Jaylaelike/noksom-notify/internal/db"
	"github.com/Jaylaelike/noksom-notify/internal/dispatch"
	"github.com/Jaylaelike/noksom-notify/internal/model"
	"github.com/Jaylaelike/noksom-notify/internal/store"
)

type stubSender struct{}

func (stubSender) Send(_ context.Context, _ []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusCreated,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
		Dispatch: config.DispatchConfig{
			PerRecipientTimeout: time.Second,
			DefaultIcon:         "/icons/icon-192x192.png",
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
		},
	}

	appStore := store.NewGormStore(gormDB)
	webpushOptions := &webpush.Options{VAPIDPublicKey: "test-public-key"}
	dispatcher := dispatch.New(appStore, webpushOptions, &cfg.Dispatch)
	dispatcher.SetSender(stubSender{})

	return NewRouter(appStore, dispatcher, webpushOptions, cfg), appStore
}

func doJSON(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	creds := gin.H{"email": "admin@example.com", "password": "hunter2hunter2"}
	w := doJSON(router, http.MethodPost, "/api/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSend_MissingRequiredFields(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/send", gin.H{"title": "X"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSend_InvalidRoomToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/send", gin.H{
		"title":       "X",
		"body":        "Y",
		"roomTokenId": "no-such-token",
	}, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid room token ID"}`, w.Body.String())
}

func TestSend_NoRecipients(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/send", gin.H{"title": "X", "body": "Y"}, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"No active subscriptions found"}`, w.Body.String())
}

func TestSend_Broadcast(t *testing.T) {
	router, s := newTestRouter(t)
	require.NoError(t, s.UpsertSubscription(context.Background(), &model.Subscription{
		Endpoint: "https://push.example.com/a",
		P256DH:   "k",
		Auth:     "a",
	}))

	w := doJSON(router, http.MethodPost, "/api/send", gin.H{"title": "X", "body": "Y"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success        bool   `json:"success"`
		Sent           int    `json:"sent"`
		Total          int    `json:"total"`
		NotificationID int64  `json:"notificationId"`
		RoomID         *int64 `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Sent)
	assert.Equal(t, 1, resp.Total)
	assert.NotZero(t, resp.NotificationID)
	assert.Nil(t, resp.RoomID)
}

func TestPutSubscription(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint": "https://push.example.com/a",
		"p256dh":   "k",
		"auth":     "a",
	}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestResubscribe_MissingData(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/resubscribe", gin.H{
		"oldSubscription": gin.H{},
		"newSubscription": gin.H{},
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing subscription data"}`, w.Body.String())
}

func TestResubscribe_RotatesEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertSubscription(ctx, &model.Subscription{
		Endpoint: "https://push.example.com/old",
		P256DH:   "k",
		Auth:     "a",
	}))

	w := doJSON(router, http.MethodPost, "/api/resubscribe", gin.H{
		"oldSubscription": gin.H{"endpoint": "https://push.example.com/old"},
		"newSubscription": gin.H{
			"endpoint": "https://push.example.com/new",
			"keys":     gin.H{"p256dh": "k2", "auth": "a2"},
		},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	_, err := s.GetSubscriptionByEndpoint(ctx, "https://push.example.com/old")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	rotated, err := s.GetSubscriptionByEndpoint(ctx, "https://push.example.com/new")
	require.NoError(t, err)
	assert.Equal(t, "k2", rotated.P256DH)
}

func TestWebhookConfig_AuthAndValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPut, "/api/config", gin.H{"endpoint": "https://hook.example.com"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := loginToken(t, router)

	w = doJSON(router, http.MethodPut, "/api/config", gin.H{
		"endpoint": "https://hook.example.com",
		"headers":  "{not json",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid JSON in headers or payload"}`, w.Body.String())

	w = doJSON(router, http.MethodPut, "/api/config", gin.H{
		"endpoint": "https://hook.example.com",
		"headers":  `{"X-Custom":"yes"}`,
		"payload":  `{"t":"{{title}}"}`,
	}, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/config", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg struct {
		Endpoint string `json:"endpoint"`
		Payload  string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "https://hook.example.com", cfg.Endpoint)
	assert.Equal(t, `{"t":"{{title}}"}`, cfg.Payload)
}

func TestRooms_JoinByTokenIdempotent(t *testing.T) {
	router, s := newTestRouter(t)
	token := loginToken(t, router)

	w := doJSON(router, http.MethodPost, "/api/rooms", gin.H{"name": "Alerts", "description": "ops"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	var room struct {
		ID      int64  `json:"id"`
		TokenID string `json:"tokenId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	require.NotEmpty(t, room.TokenID)

	// Joining without a push subscription is rejected.
	w = doJSON(router, http.MethodPost, "/api/rooms/token/"+room.TokenID+"/join",
		gin.H{"endpoint": "https://push.example.com/a"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, s.UpsertSubscription(context.Background(), &model.Subscription{
		Endpoint: "https://push.example.com/a",
		P256DH:   "k",
		Auth:     "a",
	}))

	w = doJSON(router, http.MethodPost, "/api/rooms/token/"+room.TokenID+"/join",
		gin.H{"endpoint": "https://push.example.com/a"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"alreadySubscribed":false}`, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/rooms/token/"+room.TokenID+"/join",
		gin.H{"endpoint": "https://push.example.com/a"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"alreadySubscribed":true}`, w.Body.String())

	// Unknown token is a capability failure.
	w = doJSON(router, http.MethodPost, "/api/rooms/token/bogus/join",
		gin.H{"endpoint": "https://push.example.com/a"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRooms_MembershipFlags(t *testing.T) {
	router, s := newTestRouter(t)
	ctx := context.Background()
	token := loginToken(t, router)

	w := doJSON(router, http.MethodPost, "/api/rooms", gin.H{"name": "Alerts"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(router, http.MethodPost, "/api/rooms", gin.H{"name": "News"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	sub := &model.Subscription{Endpoint: "https://push.example.com/a", P256DH: "k", Auth: "a"}
	require.NoError(t, s.UpsertSubscription(ctx, sub))
	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	var alerts model.Room
	for _, r := range rooms {
		if r.Name == "Alerts" {
			alerts = r
		}
	}
	_, err = s.JoinRoom(ctx, alerts.ID, sub.ID)
	require.NoError(t, err)

	w = doJSON(router, http.MethodGet, "/api/rooms?endpoint=https://push.example.com/a", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var listed []struct {
		Name         string `json:"name"`
		IsSubscribed bool   `json:"isSubscribed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	flags := map[string]bool{}
	for _, r := range listed {
		flags[r.Name] = r.IsSubscribed
	}
	assert.True(t, flags["Alerts"])
	assert.False(t, flags["News"])
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/vapid_public_key", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}
