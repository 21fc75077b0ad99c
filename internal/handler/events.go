package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/model"
)

// EventsHandler accepts platform notification events from the app shell
// and feeds them into the bridge.
type EventsHandler struct {
	bridge *bridge.Bridge
	logger *slog.Logger
}

func NewEventsHandler(b *bridge.Bridge, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{bridge: b, logger: logger}
}

// decodeEvent reads an event body loosely. Only a body that is not a JSON
// object is an error; wrongly typed fields fall back to their zero value.
func decodeEvent(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var raw any
	if err := decodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	fields, _ := raw.(map[string]any)
	return fields, nil
}

// eventData returns the data object of an event, or nil when it is missing
// or not an object.
func eventData(fields map[string]any) map[string]any {
	data, _ := fields["data"].(map[string]any)
	return data
}

// Received handles POST /api/events/received
func (h *EventsHandler) Received(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeEvent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.bridge.DeliverReceived(bridge.ReceivedEvent{
		Identifier: model.StringField(fields, "identifier"),
		Title:      model.StringField(fields, "title"),
		Body:       model.StringField(fields, "body"),
		Data:       eventData(fields),
	})
	w.WriteHeader(http.StatusAccepted)
}

// Opened handles POST /api/events/opened
func (h *EventsHandler) Opened(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeEvent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.bridge.DeliverOpened(bridge.OpenedEvent{
		Identifier: model.StringField(fields, "identifier"),
		Data:       eventData(fields),
	})
	w.WriteHeader(http.StatusAccepted)
}
