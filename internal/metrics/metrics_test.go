package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/carcert/internal/inbox"
	"github.com/dukerupert/carcert/internal/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestInboxChanged(t *testing.T) {
	m := New()
	ns := []model.Notification{
		{ID: "1"},
		{ID: "2", Read: true},
		{ID: "3"},
	}

	m.InboxChanged(inbox.ActionHydrated, ns)
	m.InboxChanged(inbox.ActionAppended, ns)
	m.InboxChanged(inbox.ActionPersistFail, nil)

	out := scrape(t, m)
	for _, want := range []string{
		"carcert_inbox_notifications 3",
		"carcert_inbox_unread 2",
		`carcert_inbox_mutations_total{action="appended"} 1`,
		"carcert_inbox_persist_failures_total 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
	if strings.Contains(out, `action="hydrated"`) {
		t.Error("hydrate counted as a mutation")
	}
}

func TestObserveSchedule(t *testing.T) {
	m := New()
	m.ObserveSchedule(model.TypeTheft, nil)
	m.ObserveSchedule(model.TypeTheft, errors.New("refused"))

	out := scrape(t, m)
	if !strings.Contains(out, `carcert_local_notifications_scheduled_total{result="ok",type="theft"} 1`) {
		t.Error("missing ok sample")
	}
	if !strings.Contains(out, `carcert_local_notifications_scheduled_total{result="error",type="theft"} 1`) {
		t.Error("missing error sample")
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "GET /api/notifications", 200, 3*time.Millisecond)

	out := scrape(t, m)
	if !strings.Contains(out, `carcert_http_requests_total{method="GET",route="GET /api/notifications",status="200"} 1`) {
		t.Errorf("missing request sample in:\n%s", out)
	}
}
