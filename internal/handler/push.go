package handler

import (
	"context"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/carcert/internal/model"
)

// Registrar is the push registration surface of the notification manager.
type Registrar interface {
	Registration() model.PushRegistration
	Register(ctx context.Context) model.PushRegistration
}

// SubscriptionStore receives the browser push subscription on the web runtime.
type SubscriptionStore interface {
	SetSubscription(ctx context.Context, sub *webpush.Subscription) error
}

type PushHandler struct {
	registrar Registrar
	subs      SubscriptionStore // nil when web push is disabled
	vapidKey  string
	logger    *slog.Logger
}

func NewPushHandler(reg Registrar, subs SubscriptionStore, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{registrar: reg, subs: subs, vapidKey: vapidPublicKey, logger: logger}
}

// Registration handles GET /api/push/registration
func (h *PushHandler) Registration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registrar.Registration())
}

// Register handles POST /api/push/register
func (h *PushHandler) Register(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registrar.Register(r.Context()))
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidKey == "" {
		writeError(w, http.StatusNotFound, "web push is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidKey})
}

type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Subscription handles POST /api/push/subscription. Storing the browser
// subscription grants permission, so registration is re-run.
func (h *PushHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	if h.subs == nil {
		writeError(w, http.StatusNotFound, "web push is not configured")
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub := &webpush.Subscription{
		Endpoint: req.Endpoint,
		Keys:     webpush.Keys{P256dh: req.P256dh, Auth: req.Auth},
	}
	if err := h.subs.SetSubscription(r.Context(), sub); err != nil {
		h.logger.Error("save push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusOK, h.registrar.Register(r.Context()))
}
