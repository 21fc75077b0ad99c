package notify

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/model"
)

// Navigation targets carried in product notifications.
const (
	ScreenCertificates = "certificates"
	ScreenSecurity     = "security"
	ScreenTransactions = "transactions"
	ScreenMessages     = "messages"
)

// ScheduleLocal asks the platform to show a notification immediately. See
// ScheduleLocalAfter.
func (m *Manager) ScheduleLocal(ctx context.Context, title, body string, data map[string]any, typ model.NotificationType) (string, error) {
	return m.ScheduleLocalAfter(ctx, 0, title, body, data, typ)
}

// ScheduleLocalAfter asks the platform to show a notification after delay. The
// record reaches the inbox through the received-event path, not directly.
// An empty typ means system. The returned id is the one the record will
// carry; failures are logged and returned. Scheduling before Start fails
// with ErrNotStarted, after Close with ErrClosed.
func (m *Manager) ScheduleLocalAfter(ctx context.Context, delay time.Duration, title, body string, data map[string]any, typ model.NotificationType) (string, error) {
	if typ == "" {
		typ = model.TypeSystem
	}
	payload := make(map[string]any, len(data)+1)
	maps.Copy(payload, data)
	payload["type"] = string(typ)

	var id string
	err := m.ready()
	if err == nil {
		id, err = m.scheduler.Schedule(ctx, bridge.Request{
			Title: title,
			Body:  body,
			Data:  payload,
			Delay: delay,
		})
	}
	if m.observer != nil {
		m.observer.ObserveSchedule(typ, err)
	}
	if err != nil {
		m.logger.Error("schedule local notification", "title", title, "error", err)
		return "", fmt.Errorf("schedule local notification: %w", err)
	}
	return id, nil
}

// CancelLocal drops a local notification that has not been delivered yet.
func (m *Manager) CancelLocal(id string) bool {
	return m.scheduler.Cancel(id)
}

// NotifyCertified announces a completed vehicle certification.
func (m *Manager) NotifyCertified(ctx context.Context, vehicleName string) (string, error) {
	return m.ScheduleLocal(ctx,
		"Vehicle Certified",
		fmt.Sprintf("Your %s has been successfully certified on the blockchain!", vehicleName),
		map[string]any{"screen": ScreenCertificates, "vehicle": vehicleName},
		model.TypeSecurity,
	)
}

// NotifyTheftAlert warns about suspicious activity around a vehicle.
func (m *Manager) NotifyTheftAlert(ctx context.Context, vehicleName, location string) (string, error) {
	return m.ScheduleLocal(ctx,
		"Theft Alert",
		fmt.Sprintf("Suspicious activity detected for %s at %s", vehicleName, location),
		map[string]any{"screen": ScreenSecurity, "vehicle": vehicleName, "location": location},
		model.TypeTheft,
	)
}

// NotifyTransactionUpdate reports a marketplace transaction status change.
func (m *Manager) NotifyTransactionUpdate(ctx context.Context, status, vehicleName string) (string, error) {
	return m.ScheduleLocal(ctx,
		"Transaction Update",
		fmt.Sprintf("Your transaction for %s is now %s", vehicleName, status),
		map[string]any{"screen": ScreenTransactions, "vehicle": vehicleName, "status": status},
		model.TypeTransaction,
	)
}

// NotifyNewMessage announces a message from another user.
func (m *Manager) NotifyNewMessage(ctx context.Context, sender string) (string, error) {
	return m.ScheduleLocal(ctx,
		"New Message",
		fmt.Sprintf("You have a new message from %s", sender),
		map[string]any{"screen": ScreenMessages, "sender": sender},
		model.TypeSystem,
	)
}
