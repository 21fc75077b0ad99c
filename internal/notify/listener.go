package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/model"
)

// listener turns platform events into inbox mutations.
type listener struct {
	m *Manager
}

func (l *listener) OnReceived(ev bridge.ReceivedEvent) {
	if !l.m.guard.Alive() {
		return
	}

	n := recordFromEvent(ev, l.m.now().UnixMilli())

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	l.m.inbox.Append(ctx, n)

	l.m.logger.Debug("notification received", "id", n.ID, "type", string(n.Type))
}

func (l *listener) OnOpened(ev bridge.OpenedEvent) {
	if !l.m.guard.Alive() {
		return
	}

	if ev.Identifier != "" {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		l.m.inbox.MarkAsRead(ctx, ev.Identifier)
		cancel()
	}

	if screen := model.StringField(ev.Data, "screen"); screen != "" {
		l.m.navigator.Navigate(screen, ev.Data)
	}
}

// recordFromEvent builds an unread record, defaulting anything the platform
// left out.
func recordFromEvent(ev bridge.ReceivedEvent, receivedAt int64) model.Notification {
	id := ev.Identifier
	if id == "" {
		id = uuid.NewString()
	}
	return model.Notification{
		ID:        id,
		Title:     ev.Title,
		Body:      ev.Body,
		Data:      ev.Data,
		Timestamp: receivedAt,
		Read:      false,
		Type:      model.ParseNotificationType(model.StringField(ev.Data, "type")),
	}
}
