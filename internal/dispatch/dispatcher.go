package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/Jaylaelike/noksom-notify/config"
	"github.com/Jaylaelike/noksom-notify/internal/model"
	"github.com/Jaylaelike/noksom-notify/internal/store"
)

// ErrTargetNotFound is reported when a room token resolves to nothing.
// ErrNoRecipients is reported when the resolved recipient set is empty.
// Both are terminal for the call and neither writes a history record.
var (
	ErrTargetNotFound = errors.New("invalid room token")
	ErrNoRecipients   = errors.New("no active subscriptions")
)

// Intent is a caller's request to send one notification.
type Intent struct {
	Title       string         `json:"title" binding:"required"`
	Body        string         `json:"body" binding:"required"`
	Icon        string         `json:"icon"`
	Data        map[string]any `json:"data"`
	RoomID      *int64         `json:"roomId"`
	RoomTokenID string         `json:"roomTokenId"`
}

// Result summarizes one dispatch call. It is informational only; nothing
// retries based on it.
type Result struct {
	Sent           int
	Total          int
	NotificationID int64
	RoomID         *int64
}

// Sender defines the interface for delivering a web push notification.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// Dispatcher resolves a dispatch target to a recipient set, fans the
// payload out to every recipient's push endpoint, records one history
// row, and mirrors the notification to the configured webhook.
type Dispatcher struct {
	store       store.Store
	sender      Sender
	webpush     *webpush.Options
	httpClient  *http.Client
	timeout     time.Duration
	defaultIcon string
}

// New creates a Dispatcher. All collaborators are injected; the
// dispatcher owns no global state.
func New(s store.Store, webpushOptions *webpush.Options, cfg *config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		store:       s,
		sender:      &WebPushSender{},
		webpush:     webpushOptions,
		httpClient:  &http.Client{Timeout: cfg.PerRecipientTimeout},
		timeout:     cfg.PerRecipientTimeout,
		defaultIcon: cfg.DefaultIcon,
	}
}

// SetSender overrides the delivery transport. Tests use this to avoid
// real push-service calls.
func (d *Dispatcher) SetSender(s Sender) {
	d.sender = s
}

// Dispatch runs one best-effort fan-out. Per-recipient failures never
// abort the call; only resolution, an empty recipient set, or a store
// failure do.
func (d *Dispatcher) Dispatch(ctx context.Context, intent *Intent) (*Result, error) {
	roomID, err := d.resolveTarget(ctx, intent)
	if err != nil {
		return nil, err
	}

	subs, err := d.fetchRecipients(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoRecipients
	}

	icon := intent.Icon
	if icon == "" {
		icon = d.defaultIcon
	}
	payload, err := buildPayload(intent, icon, roomID)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	sent := d.fanOut(ctx, subs, payload)

	notification, err := d.record(ctx, intent, icon, roomID)
	if err != nil {
		return nil, err
	}

	d.mirror(ctx, intent, icon, roomID, payload)

	return &Result{
		Sent:           sent,
		Total:          len(subs),
		NotificationID: notification.ID,
		RoomID:         roomID,
	}, nil
}

// resolveTarget maps the intent to a room id, or nil for broadcast. A
// token is only consulted when no explicit id was given; an explicit id
// is used as-is, since an unknown id simply yields zero recipients.
func (d *Dispatcher) resolveTarget(ctx context.Context, intent *Intent) (*int64, error) {
	if intent.RoomID != nil {
		return intent.RoomID, nil
	}
	if intent.RoomTokenID == "" {
		return nil, nil
	}
	room, err := d.store.GetRoomByToken(ctx, intent.RoomTokenID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve room token: %w", err)
	}
	return &room.ID, nil
}

func (d *Dispatcher) fetchRecipients(ctx context.Context, roomID *int64) ([]model.Subscription, error) {
	if roomID != nil {
		return d.store.ListRoomSubscriptions(ctx, *roomID)
	}
	return d.store.ListSubscriptions(ctx)
}

// fanOut delivers the payload to every recipient concurrently and waits
// for all attempts to settle before returning the success count.
func (d *Dispatcher) fanOut(ctx context.Context, subs []model.Subscription, payload []byte) int {
	results := make(chan bool, len(subs))
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub model.Subscription) {
			defer wg.Done()
			results <- d.deliver(ctx, sub, payload)
		}(sub)
	}
	wg.Wait()
	close(results)

	sent := 0
	for ok := range results {
		if ok {
			sent++
		}
	}
	return sent
}

// deliver sends one push. A 410 response means the endpoint is
// permanently gone, so the subscription row is removed.
func (d *Dispatcher) deliver(ctx context.Context, sub model.Subscription, payload []byte) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := d.sender.Send(sendCtx, payload, wpSub, d.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := d.store.DeleteSubscription(ctx, sub.ID); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Push endpoint %s returned status %d", sub.Endpoint, resp.StatusCode)
		return false
	}
	return true
}

// record writes the single history row for this dispatch call. It
// captures the intent as submitted, not per-recipient outcomes.
func (d *Dispatcher) record(ctx context.Context, intent *Intent, icon string, roomID *int64) (*model.Notification, error) {
	var data *string
	if intent.Data != nil {
		raw, err := json.Marshal(intent.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal notification data: %w", err)
		}
		s := string(raw)
		data = &s
	}

	notification := &model.Notification{
		Title:  intent.Title,
		Body:   intent.Body,
		Icon:   icon,
		Data:   data,
		RoomID: roomID,
	}
	if err := d.store.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// mirror posts a copy of the notification to the configured webhook.
// Strictly best-effort: every failure in here is logged and swallowed.
func (d *Dispatcher) mirror(ctx context.Context, intent *Intent, icon string, roomID *int64, payload []byte) {
	cfg, err := d.store.GetWebhookConfig(ctx)
	if err != nil {
		log.Printf("Error loading webhook config: %v", err)
		return
	}
	if cfg == nil || cfg.Endpoint == "" {
		return
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if cfg.AuthKey != "" {
		headers["Authorization"] = cfg.AuthKey
	}
	if cfg.Headers != "" {
		var custom map[string]string
		if err := json.Unmarshal([]byte(cfg.Headers), &custom); err != nil {
			log.Printf("Invalid webhook headers JSON, ignoring: %v", err)
		} else {
			for k, v := range custom {
				headers[k] = v
			}
		}
	}

	body := payload
	if cfg.Payload != "" {
		if json.Valid([]byte(cfg.Payload)) {
			body = []byte(RenderTemplate(cfg.Payload, templateData(intent, icon, roomID)))
		} else {
			log.Printf("Invalid webhook payload template, falling back to default payload")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("Error building webhook request: %v", err)
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		log.Printf("Error sending webhook notification: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("Webhook %s returned status %d", cfg.Endpoint, resp.StatusCode)
	}
}

// buildPayload serializes the notification the service worker renders.
func buildPayload(intent *Intent, icon string, roomID *int64) ([]byte, error) {
	data := make(map[string]any, len(intent.Data)+1)
	for k, v := range intent.Data {
		data[k] = v
	}
	data["roomId"] = roomID

	return json.Marshal(map[string]any{
		"title": intent.Title,
		"body":  intent.Body,
		"icon":  icon,
		"data":  data,
	})
}

// templateData is the substitution source for {{key}} placeholders:
// the notification fields first, caller data overlaid on top.
func templateData(intent *Intent, icon string, roomID *int64) map[string]any {
	data := map[string]any{
		"title": intent.Title,
		"body":  intent.Body,
		"icon":  icon,
	}
	if roomID != nil {
		data["roomId"] = *roomID
	} else {
		data["roomId"] = nil
	}
	for k, v := range intent.Data {
		data[k] = v
	}
	return data
}
