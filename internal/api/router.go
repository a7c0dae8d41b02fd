package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Jaylaelike/noksom-notify/config"
	"github.com/Jaylaelike/noksom-notify/internal/dispatch"
	"github.com/Jaylaelike/noksom-notify/internal/mw"
	"github.com/Jaylaelike/noksom-notify/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, d *dispatch.Dispatcher, webpushOptions *webpush.Options, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, d, webpushOptions, &cfg.Auth)

	corsCfg := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	requireAuth := mw.RequireAuth(cfg.Auth.JWTSecret)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.PUT("/subscriptions", handler.PutSubscription)
		api.GET("/subscriptions", handler.GetSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.POST("/resubscribe", handler.Resubscribe)

		api.GET("/rooms", handler.ListRooms)
		api.POST("/rooms", requireAuth, handler.CreateRoom)
		api.PUT("/rooms/:room_id", requireAuth, handler.UpdateRoom)
		api.DELETE("/rooms/:room_id", requireAuth, handler.DeleteRoom)
		api.POST("/rooms/:room_id/join", handler.JoinRoom)
		api.POST("/rooms/:room_id/leave", handler.LeaveRoom)
		api.POST("/rooms/token/:token/join", handler.JoinRoomByToken)
		api.GET("/rooms/:room_id/history", caching, handler.GetRoomHistory)

		api.GET("/history", caching, handler.GetHistory)

		api.GET("/config", requireAuth, handler.GetWebhookConfig)
		api.PUT("/config", requireAuth, handler.PutWebhookConfig)

		api.POST("/send", handler.Send)

		api.POST("/auth/register", handler.Register)
		api.POST("/auth/login", handler.Login)
	}

	return r
}
