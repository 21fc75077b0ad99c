package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/carcert/internal/model"
)

// Notifier is the notification manager surface the HTTP API exposes.
type Notifier interface {
	Notifications() []model.Notification
	Notification(id string) (model.Notification, bool)
	ByType(t model.NotificationType) []model.Notification
	UnreadCount() int
	MarkAsRead(ctx context.Context, id string)
	MarkAllAsRead(ctx context.Context)
	DeleteNotification(ctx context.Context, id string)
	ClearAllNotifications(ctx context.Context)

	ScheduleLocalAfter(ctx context.Context, delay time.Duration, title, body string, data map[string]any, typ model.NotificationType) (string, error)
	NotifyCertified(ctx context.Context, vehicleName string) (string, error)
	NotifyTheftAlert(ctx context.Context, vehicleName, location string) (string, error)
	NotifyTransactionUpdate(ctx context.Context, status, vehicleName string) (string, error)
	NotifyNewMessage(ctx context.Context, sender string) (string, error)
	CancelLocal(id string) bool
}

type NotificationHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewNotificationHandler(n Notifier, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifier: n, logger: logger}
}

// List handles GET /api/notifications[?type=theft]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		typ := model.NotificationType(t)
		if !typ.Valid() {
			writeError(w, http.StatusBadRequest, "unknown notification type")
			return
		}
		writeJSON(w, http.StatusOK, h.notifier.ByType(typ))
		return
	}
	writeJSON(w, http.StatusOK, h.notifier.Notifications())
}

// Get handles GET /api/notifications/{id}
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, ok := h.notifier.Notification(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"unread": h.notifier.UnreadCount()})
}

// MarkRead handles POST /api/notifications/{id}/read. Unknown ids succeed
// without effect.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.notifier.MarkAsRead(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.notifier.MarkAllAsRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.notifier.DeleteNotification(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearAll handles DELETE /api/notifications
func (h *NotificationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.notifier.ClearAllNotifications(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
	Type  string         `json:"type"`
	// DelayMS postpones delivery; zero delivers immediately.
	DelayMS int64 `json:"delay_ms"`
}

// ScheduleLocal handles POST /api/notifications/local
func (h *NotificationHandler) ScheduleLocal(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	typ := model.NotificationType(req.Type)
	if req.Type != "" && !typ.Valid() {
		writeError(w, http.StatusBadRequest, "unknown notification type")
		return
	}
	if req.DelayMS < 0 {
		writeError(w, http.StatusBadRequest, "delay_ms must not be negative")
		return
	}
	delay := time.Duration(req.DelayMS) * time.Millisecond
	id, err := h.notifier.ScheduleLocalAfter(r.Context(), delay, req.Title, req.Body, req.Data, typ)
	h.scheduled(w, id, err)
}

// CancelLocal handles DELETE /api/notifications/local/{id}. Only
// notifications that have not been delivered yet can be cancelled.
func (h *NotificationHandler) CancelLocal(w http.ResponseWriter, r *http.Request) {
	if !h.notifier.CancelLocal(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "no pending notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type certifiedRequest struct {
	VehicleName string `json:"vehicle_name"`
}

// Certified handles POST /api/notifications/certified
func (h *NotificationHandler) Certified(w http.ResponseWriter, r *http.Request) {
	var req certifiedRequest
	if !h.decodeRequired(w, r, &req, &req.VehicleName) {
		return
	}
	id, err := h.notifier.NotifyCertified(r.Context(), req.VehicleName)
	h.scheduled(w, id, err)
}

type theftAlertRequest struct {
	VehicleName string `json:"vehicle_name"`
	Location    string `json:"location"`
}

// TheftAlert handles POST /api/notifications/theft-alert
func (h *NotificationHandler) TheftAlert(w http.ResponseWriter, r *http.Request) {
	var req theftAlertRequest
	if !h.decodeRequired(w, r, &req, &req.VehicleName, &req.Location) {
		return
	}
	id, err := h.notifier.NotifyTheftAlert(r.Context(), req.VehicleName, req.Location)
	h.scheduled(w, id, err)
}

type transactionRequest struct {
	Status      string `json:"status"`
	VehicleName string `json:"vehicle_name"`
}

// Transaction handles POST /api/notifications/transaction
func (h *NotificationHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !h.decodeRequired(w, r, &req, &req.Status, &req.VehicleName) {
		return
	}
	id, err := h.notifier.NotifyTransactionUpdate(r.Context(), req.Status, req.VehicleName)
	h.scheduled(w, id, err)
}

type messageRequest struct {
	Sender string `json:"sender"`
}

// Message handles POST /api/notifications/message
func (h *NotificationHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !h.decodeRequired(w, r, &req, &req.Sender) {
		return
	}
	id, err := h.notifier.NotifyNewMessage(r.Context(), req.Sender)
	h.scheduled(w, id, err)
}

// decodeRequired decodes the body into v and checks that every field in
// required is non-blank. It writes the 400 itself.
func (h *NotificationHandler) decodeRequired(w http.ResponseWriter, r *http.Request, v any, required ...*string) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	for _, f := range required {
		if strings.TrimSpace(*f) == "" {
			writeError(w, http.StatusBadRequest, "missing required field")
			return false
		}
	}
	return true
}

func (h *NotificationHandler) scheduled(w http.ResponseWriter, id string, err error) {
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to schedule notification")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}
