// Package notify is the notification manager consumed by the app: it owns
// push registration, the persisted inbox and the platform event listener,
// and exposes the typed convenience API for product notifications.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/inbox"
	"github.com/dukerupert/carcert/internal/lifecycle"
	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/push"
)

// persistTimeout bounds the store write triggered by a platform callback,
// which has no caller context of its own.
const persistTimeout = 5 * time.Second

// Errors returned when a local notification could not reach the inbox.
var (
	ErrNotStarted = errors.New("notification manager not started")
	ErrClosed     = errors.New("notification manager closed")
)

// Scheduler enqueues locally originated notifications with the platform.
type Scheduler interface {
	Schedule(ctx context.Context, req bridge.Request) (string, error)
	Cancel(id string) bool
}

// ScheduleObserver is told the outcome of every local schedule request.
type ScheduleObserver interface {
	ObserveSchedule(typ model.NotificationType, err error)
}

// Deps are the collaborators a Manager is built from.
type Deps struct {
	Inbox     *inbox.Inbox
	Registrar *push.Registrar
	Bridge    *bridge.Bridge
	Scheduler Scheduler
	Navigator Navigator
	Logger    *slog.Logger
	// Observer is optional.
	Observer ScheduleObserver
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager is the notification context object. Construct one per process,
// call Start once when the app mounts and Close on teardown.
type Manager struct {
	inbox     *inbox.Inbox
	registrar *push.Registrar
	bridge    *bridge.Bridge
	scheduler Scheduler
	navigator Navigator
	logger    *slog.Logger
	observer  ScheduleObserver
	now       func() time.Time

	guard     *lifecycle.Guard
	startOnce sync.Once
	started   atomic.Bool
}

// NewManager wires a Manager from deps.
func NewManager(deps Deps) *Manager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	nav := deps.Navigator
	if nav == nil {
		nav = NopNavigator{}
	}
	return &Manager{
		inbox:     deps.Inbox,
		registrar: deps.Registrar,
		bridge:    deps.Bridge,
		scheduler: deps.Scheduler,
		navigator: nav,
		logger:    deps.Logger,
		observer:  deps.Observer,
		now:       now,
		guard:     lifecycle.New(),
	}
}

// Start registers for push, loads the persisted inbox and subscribes to
// platform events. Only the first call does anything.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		if !m.guard.Alive() {
			return
		}
		m.registrar.Hydrate(ctx)
		m.registrar.Register(ctx)
		m.inbox.Hydrate(ctx)

		sub := m.bridge.Subscribe(&listener{m: m})
		m.guard.Track(sub)
		m.started.Store(true)

		m.logger.Info("notification manager started",
			"notifications", len(m.inbox.Notifications()),
			"unread", m.inbox.UnreadCount(),
			"push_granted", m.registrar.Registration().PermissionGranted,
		)
	})
}

// Close unsubscribes from platform events and cancels pending demo timers.
func (m *Manager) Close() {
	m.guard.Close()
}

// ready reports why locally scheduled notifications cannot currently reach
// the inbox, if they cannot.
func (m *Manager) ready() error {
	if !m.guard.Alive() {
		return ErrClosed
	}
	if !m.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// Register retries push registration, e.g. after the user changes the
// permission in system settings.
func (m *Manager) Register(ctx context.Context) model.PushRegistration {
	return m.registrar.Register(ctx)
}

// Registration returns the current push registration state.
func (m *Manager) Registration() model.PushRegistration {
	return m.registrar.Registration()
}

// Notifications returns the inbox, newest first.
func (m *Manager) Notifications() []model.Notification {
	return m.inbox.Notifications()
}

// ViewNotifications calls fn with the inbox, ordered with respect to inbox
// change notifications. See inbox.View.
func (m *Manager) ViewNotifications(fn func([]model.Notification)) {
	m.inbox.View(fn)
}

// Notification returns the record with the given id.
func (m *Manager) Notification(id string) (model.Notification, bool) {
	return m.inbox.Get(id)
}

// UnreadCount returns the number of unread notifications.
func (m *Manager) UnreadCount() int {
	return m.inbox.UnreadCount()
}

// ByType returns notifications of type t, newest first.
func (m *Manager) ByType(t model.NotificationType) []model.Notification {
	return m.inbox.ByType(t)
}

func (m *Manager) MarkAsRead(ctx context.Context, id string) {
	m.inbox.MarkAsRead(ctx, id)
}

func (m *Manager) MarkAllAsRead(ctx context.Context) {
	m.inbox.MarkAllAsRead(ctx)
}

func (m *Manager) DeleteNotification(ctx context.Context, id string) {
	m.inbox.Delete(ctx, id)
}

func (m *Manager) ClearAllNotifications(ctx context.Context) {
	m.inbox.ClearAll(ctx)
}
