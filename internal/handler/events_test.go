package handler

import (
	"net/http"
	"sync"
	"testing"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/model"
)

type eventRecorder struct {
	mu       sync.Mutex
	received []bridge.ReceivedEvent
	opened   []bridge.OpenedEvent
}

func (r *eventRecorder) OnReceived(ev bridge.ReceivedEvent) {
	r.mu.Lock()
	r.received = append(r.received, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) OnOpened(ev bridge.OpenedEvent) {
	r.mu.Lock()
	r.opened = append(r.opened, ev)
	r.mu.Unlock()
}

func TestEventsDelivered(t *testing.T) {
	b := bridge.New(testLogger())
	rec := &eventRecorder{}
	sub := b.Subscribe(rec)
	defer sub.Unsubscribe()

	h := NewEventsHandler(b, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events/received", h.Received)
	mux.HandleFunc("POST /api/events/opened", h.Opened)

	resp := do(mux, "POST", "/api/events/received", `{"identifier":"r1","title":"Theft Alert","data":{"type":"theft"}}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("received status = %d", resp.Code)
	}
	resp = do(mux, "POST", "/api/events/opened", `{"identifier":"r1","data":{"screen":"security"}}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("opened status = %d", resp.Code)
	}

	if len(rec.received) != 1 || rec.received[0].Identifier != "r1" || rec.received[0].Data["type"] != "theft" {
		t.Errorf("received = %+v", rec.received)
	}
	if len(rec.opened) != 1 || rec.opened[0].Data["screen"] != "security" {
		t.Errorf("opened = %+v", rec.opened)
	}
}

func TestEventsEmptyBody(t *testing.T) {
	b := bridge.New(testLogger())
	rec := &eventRecorder{}
	sub := b.Subscribe(rec)
	defer sub.Unsubscribe()

	h := NewEventsHandler(b, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events/received", h.Received)

	if resp := do(mux, "POST", "/api/events/received", ""); resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d", resp.Code)
	}
	if len(rec.received) != 1 || rec.received[0].Identifier != "" {
		t.Errorf("received = %+v", rec.received)
	}
	if resp := do(mux, "POST", "/api/events/received", "{"); resp.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", resp.Code)
	}
}

func TestEventsWrongTypesDefaulted(t *testing.T) {
	b := bridge.New(testLogger())
	rec := &eventRecorder{}
	sub := b.Subscribe(rec)
	defer sub.Unsubscribe()

	h := NewEventsHandler(b, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events/received", h.Received)
	mux.HandleFunc("POST /api/events/opened", h.Opened)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"numeric title", "/api/events/received", `{"identifier":"x1","title":42,"body":"b","data":{"type":"theft"}}`},
		{"string data", "/api/events/received", `{"title":42,"data":"x"}`},
		{"array body", "/api/events/received", `[1,2]`},
		{"numeric identifier", "/api/events/opened", `{"identifier":7,"data":["security"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := do(mux, "POST", tt.path, tt.body); resp.Code != http.StatusAccepted {
				t.Errorf("status = %d, want %d", resp.Code, http.StatusAccepted)
			}
		})
	}

	if len(rec.received) != 3 {
		t.Fatalf("received = %d events, want 3", len(rec.received))
	}
	first := rec.received[0]
	if first.Identifier != "x1" || first.Title != "" || first.Body != "b" || first.Data["type"] != "theft" {
		t.Errorf("first = %+v", first)
	}
	second := rec.received[1]
	if second.Title != "" || second.Data != nil {
		t.Errorf("second = %+v", second)
	}
	if model.ParseNotificationType(model.StringField(second.Data, "type")) != model.TypeSystem {
		t.Error("defaulted event should classify as system")
	}
	if len(rec.opened) != 1 || rec.opened[0].Identifier != "" || rec.opened[0].Data != nil {
		t.Errorf("opened = %+v", rec.opened)
	}
}
