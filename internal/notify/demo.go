package notify

import (
	"context"
	"time"
)

// StartDemo schedules a short sequence of sample product notifications,
// one every interval. The timers belong to the manager and are cancelled
// by Close. It returns the number of notifications scheduled.
func (m *Manager) StartDemo(interval time.Duration) int {
	steps := []func(ctx context.Context) (string, error){
		func(ctx context.Context) (string, error) { return m.NotifyCertified(ctx, "2021 Tesla Model 3") },
		func(ctx context.Context) (string, error) {
			return m.NotifyTransactionUpdate(ctx, "in escrow", "2019 Porsche 911")
		},
		func(ctx context.Context) (string, error) { return m.NotifyNewMessage(ctx, "Alex Morgan") },
		func(ctx context.Context) (string, error) {
			return m.NotifyTheftAlert(ctx, "2021 Tesla Model 3", "Downtown Parking Garage")
		},
	}

	scheduled := 0
	for i, step := range steps {
		ok := m.guard.AfterFunc(time.Duration(i+1)*interval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			// Failures are already logged by ScheduleLocal.
			_, _ = step(ctx)
		})
		if ok {
			scheduled++
		}
	}
	return scheduled
}
