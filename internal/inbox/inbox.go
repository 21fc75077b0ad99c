package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/store"
)

// ChangeFunc is called after every mutation with a copy of the new contents.
type ChangeFunc func(action string, notifications []model.Notification)

// Actions reported to ChangeFunc.
const (
	ActionHydrated    = "hydrated"
	ActionAppended    = "appended"
	ActionRead        = "read"
	ActionAllRead     = "all_read"
	ActionDeleted     = "deleted"
	ActionCleared     = "cleared"
	ActionPersistFail = "persist_failed"
)

// Inbox is the ordered, persisted notification collection. The in-memory
// slice is authoritative; the store holds a mirror that is rewritten in full
// after each mutation. Mutations are serialized and each write completes
// before the next mutation starts, so the persisted copy always reflects
// every mutation that has returned.
type Inbox struct {
	mu       sync.Mutex
	items    []model.Notification // newest first
	kv       store.KV
	onChange ChangeFunc
	logger   *slog.Logger
}

// New creates an empty inbox backed by kv.
func New(kv store.KV, logger *slog.Logger) *Inbox {
	return &Inbox{kv: kv, logger: logger}
}

// OnChange installs the change observer. It must be set before the inbox is
// shared between goroutines. fn runs with the inbox locked and must not call
// back into it.
func (b *Inbox) OnChange(fn ChangeFunc) {
	b.onChange = fn
}

// Hydrate replaces the in-memory contents with the persisted collection.
// A missing, unreadable or corrupt value leaves the inbox empty.
func (b *Inbox) Hydrate(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = nil
	raw, err := b.kv.Get(ctx, model.KeyNotifications)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		b.logger.Error("load notifications", "error", err)
	default:
		items, err := decode(raw)
		if err != nil {
			b.logger.Warn("discarding corrupt notifications", "error", err)
		} else {
			b.items = items
		}
	}

	b.notify(ActionHydrated)
}

// Append inserts n at the head. A record already present under the same id
// is replaced, so ids stay unique. Data is stored in its decoded JSON form,
// the same form Hydrate produces.
func (b *Inbox) Append(ctx context.Context, n model.Notification) {
	data, err := normalizeData(n.Data)
	if err != nil {
		b.logger.Warn("dropping unencodable notification data", "id", n.ID, "error", err)
	}
	n.Data = data
	b.mutate(ctx, ActionAppended, func() bool {
		if i := b.index(n.ID); i >= 0 {
			b.items = append(b.items[:i], b.items[i+1:]...)
		}
		b.items = append([]model.Notification{n}, b.items...)
		return true
	})
}

// MarkAsRead sets Read on the record with the given id. Unknown ids are ignored.
func (b *Inbox) MarkAsRead(ctx context.Context, id string) {
	b.mutate(ctx, ActionRead, func() bool {
		i := b.index(id)
		if i < 0 {
			return false
		}
		b.items[i].Read = true
		return true
	})
}

// MarkAllAsRead sets Read on every record.
func (b *Inbox) MarkAllAsRead(ctx context.Context) {
	b.mutate(ctx, ActionAllRead, func() bool {
		for i := range b.items {
			b.items[i].Read = true
		}
		return true
	})
}

// Delete removes the record with the given id. Unknown ids are ignored.
func (b *Inbox) Delete(ctx context.Context, id string) {
	b.mutate(ctx, ActionDeleted, func() bool {
		i := b.index(id)
		if i < 0 {
			return false
		}
		b.items = append(b.items[:i], b.items[i+1:]...)
		return true
	})
}

// ClearAll empties the inbox.
func (b *Inbox) ClearAll(ctx context.Context) {
	b.mutate(ctx, ActionCleared, func() bool {
		b.items = nil
		return true
	})
}

// Notifications returns a copy of the records, newest first.
func (b *Inbox) Notifications() []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// View calls fn with a copy of the records while the inbox is locked. Change
// observers also run under the lock, so anything fn sets up sees every later
// change and none before. fn must not call back into the inbox.
func (b *Inbox) View(fn func([]model.Notification)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.snapshot())
}

// Get returns the record with the given id.
func (b *Inbox) Get(id string) (model.Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return model.Notification{}, false
	}
	return cloneNotification(b.items[i]), true
}

// UnreadCount returns the number of records with Read unset.
func (b *Inbox) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, n := range b.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// ByType returns the records of type t in inbox order.
func (b *Inbox) ByType(t model.NotificationType) []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Notification{}
	for _, n := range b.items {
		if n.Type == t {
			out = append(out, cloneNotification(n))
		}
	}
	return out
}

// mutate applies fn under the lock and, when fn reports a change, persists
// the whole collection. Persist failures are logged; memory is kept.
func (b *Inbox) mutate(ctx context.Context, action string, fn func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !fn() {
		return
	}

	if err := b.persist(ctx); err != nil {
		b.logger.Error("persist notifications", "action", action, "error", err)
		b.notify(ActionPersistFail)
	}
	b.notify(action)
}

func (b *Inbox) persist(ctx context.Context) error {
	raw, err := encode(b.items)
	if err != nil {
		return err
	}
	return b.kv.Set(ctx, model.KeyNotifications, raw)
}

func (b *Inbox) notify(action string) {
	if b.onChange != nil {
		b.onChange(action, b.snapshot())
	}
}

func (b *Inbox) index(id string) int {
	for i, n := range b.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (b *Inbox) snapshot() []model.Notification {
	out := make([]model.Notification, len(b.items))
	for i, n := range b.items {
		out[i] = cloneNotification(n)
	}
	return out
}

func cloneNotification(n model.Notification) model.Notification {
	if n.Data != nil {
		data := make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	return n
}

// normalizeData returns a fresh copy of data as encoding/json decodes it:
// numbers become float64, slices []any, and an empty map nil.
func normalizeData(data map[string]any) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal notification data: %w", err)
	}
	return out, nil
}

func encode(items []model.Notification) (string, error) {
	if items == nil {
		items = []model.Notification{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal notifications: %w", err)
	}
	return string(raw), nil
}

func decode(raw string) ([]model.Notification, error) {
	var items []model.Notification
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	for i := range items {
		if !items[i].Type.Valid() {
			items[i].Type = model.TypeSystem
		}
	}
	return items, nil
}
