package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/carcert/internal/model"
)

type fakeRegistrar struct {
	reg       model.PushRegistration
	registers int
}

func (f *fakeRegistrar) Registration() model.PushRegistration { return f.reg }
func (f *fakeRegistrar) Register(context.Context) model.PushRegistration {
	f.registers++
	f.reg = model.PushRegistration{PermissionGranted: true, Token: "tok"}
	return f.reg
}

type fakeSubs struct {
	got *webpush.Subscription
	err error
}

func (f *fakeSubs) SetSubscription(_ context.Context, sub *webpush.Subscription) error {
	if f.err != nil {
		return f.err
	}
	f.got = sub
	return nil
}

func newPushMux(reg Registrar, subs SubscriptionStore, key string) *http.ServeMux {
	h := NewPushHandler(reg, subs, key, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/push/registration", h.Registration)
	mux.HandleFunc("POST /api/push/register", h.Register)
	mux.HandleFunc("GET /api/push/vapid-key", h.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscription", h.Subscription)
	return mux
}

func TestPushRegistration(t *testing.T) {
	reg := &fakeRegistrar{}
	mux := newPushMux(reg, nil, "")

	rec := do(mux, "GET", "/api/push/registration", "")
	var got model.PushRegistration
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.PermissionGranted {
		t.Error("granted before register")
	}

	rec = do(mux, "POST", "/api/push/register", "")
	json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.PermissionGranted || got.Token != "tok" || reg.registers != 1 {
		t.Errorf("after register = %+v (%d calls)", got, reg.registers)
	}
}

func TestVAPIDKey(t *testing.T) {
	if rec := do(newPushMux(&fakeRegistrar{}, nil, ""), "GET", "/api/push/vapid-key", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured status = %d", rec.Code)
	}
	rec := do(newPushMux(&fakeRegistrar{}, nil, "PUB"), "GET", "/api/push/vapid-key", "")
	if rec.Code != http.StatusOK || !json.Valid(rec.Body.Bytes()) {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestSubscription(t *testing.T) {
	reg := &fakeRegistrar{}
	subs := &fakeSubs{}
	mux := newPushMux(reg, subs, "PUB")

	rec := do(mux, "POST", "/api/push/subscription", `{"endpoint":"https://push.example/1","p256dh":"key","auth":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if subs.got == nil || subs.got.Endpoint != "https://push.example/1" || subs.got.Keys.Auth != "secret" {
		t.Errorf("stored = %+v", subs.got)
	}
	if reg.registers != 1 {
		t.Errorf("register calls = %d, want 1", reg.registers)
	}
}

func TestSubscriptionErrors(t *testing.T) {
	tests := []struct {
		name string
		subs SubscriptionStore
		body string
		want int
	}{
		{"disabled", nil, `{}`, http.StatusNotFound},
		{"incomplete", &fakeSubs{}, `{"endpoint":"x"}`, http.StatusBadRequest},
		{"bad json", &fakeSubs{}, `{`, http.StatusBadRequest},
		{"store failure", &fakeSubs{err: errors.New("disk")}, `{"endpoint":"x","p256dh":"k","auth":"a"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newPushMux(&fakeRegistrar{}, tt.subs, ""), "POST", "/api/push/subscription", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
