package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSchedulerClosed is returned when scheduling on a closed scheduler.
	ErrSchedulerClosed = errors.New("scheduler closed")
	// ErrNoListeners is returned when nothing is subscribed to the bridge,
	// so a delivered notification would be lost.
	ErrNoListeners = errors.New("no listeners subscribed")
)

// Request describes a locally originated notification.
type Request struct {
	Title string
	Body  string
	Data  map[string]any
	Delay time.Duration
}

// LocalScheduler delivers locally scheduled notifications through the
// bridge as if the platform had received them.
type LocalScheduler struct {
	bridge *Bridge
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	pending map[string]*time.Timer
}

// NewLocalScheduler creates a scheduler that delivers into b.
func NewLocalScheduler(b *Bridge, logger *slog.Logger) *LocalScheduler {
	return &LocalScheduler{
		bridge:  b,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Schedule enqueues req and returns the identifier the delivered event will
// carry. Delivery happens on a timer goroutine, never before Schedule returns.
func (s *LocalScheduler) Schedule(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("schedule notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSchedulerClosed
	}
	if s.bridge.ListenerCount() == 0 {
		return "", ErrNoListeners
	}

	id := uuid.NewString()
	ev := ReceivedEvent{
		Identifier: id,
		Title:      req.Title,
		Body:       req.Body,
		Data:       req.Data,
	}

	delay := req.Delay
	if delay < 0 {
		delay = 0
	}
	s.pending[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if !ok {
			return
		}
		s.bridge.DeliverReceived(ev)
	})

	s.logger.Debug("scheduled local notification", "identifier", id, "delay", delay)
	return id, nil
}

// Cancel drops a pending notification. It reports whether one was pending.
func (s *LocalScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.pending, id)
	return true
}

// Pending returns the number of notifications not yet delivered.
func (s *LocalScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels everything pending and rejects further scheduling.
func (s *LocalScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
