package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"github.com/Jaylaelike/noksom-notify/config"
	"github.com/Jaylaelike/noksom-notify/internal/dispatch"
	"github.com/Jaylaelike/noksom-notify/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	webpush    *webpush.Options
	auth       *config.AuthConfig
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d *dispatch.Dispatcher, webpushOptions *webpush.Options, authCfg *config.AuthConfig) *Handler {
	return &Handler{
		store:      s,
		dispatcher: d,
		webpush:    webpushOptions,
		auth:       authCfg,
	}
}
