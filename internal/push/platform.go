package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/store"
)

// ErrNoSubscription is returned when no browser subscription has been stored.
var ErrNoSubscription = errors.New("no push subscription")

// Permission is the OS-level notification permission state.
type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// Platform is the runtime's notification facility.
type Platform interface {
	// Supported reports whether the runtime can receive push at all.
	Supported() bool
	PermissionStatus(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// DeviceToken returns the opaque push delivery token for this device.
	DeviceToken(ctx context.Context) (string, error)
}

// UnsupportedPlatform is used on runtimes without push support.
type UnsupportedPlatform struct{}

func (UnsupportedPlatform) Supported() bool { return false }

func (UnsupportedPlatform) PermissionStatus(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (UnsupportedPlatform) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (UnsupportedPlatform) DeviceToken(context.Context) (string, error) {
	return "", errors.New("push not supported on this platform")
}

// WebPushPlatform treats a browser PushSubscription as the grant: the user
// has allowed notifications once the web client hands its subscription over.
// The device token is the JSON-encoded subscription.
type WebPushPlatform struct {
	kv store.KV
}

func NewWebPushPlatform(kv store.KV) *WebPushPlatform {
	return &WebPushPlatform{kv: kv}
}

func (p *WebPushPlatform) Supported() bool { return true }

func (p *WebPushPlatform) PermissionStatus(ctx context.Context) (Permission, error) {
	_, err := p.subscription(ctx)
	switch {
	case err == nil:
		return PermissionGranted, nil
	case errors.Is(err, ErrNoSubscription):
		return PermissionUndetermined, nil
	default:
		return PermissionUndetermined, err
	}
}

// RequestPermission cannot prompt from the server side; without a stored
// subscription the request resolves as denied until the client subscribes.
func (p *WebPushPlatform) RequestPermission(ctx context.Context) (Permission, error) {
	status, err := p.PermissionStatus(ctx)
	if err != nil {
		return PermissionDenied, err
	}
	if status != PermissionGranted {
		return PermissionDenied, nil
	}
	return status, nil
}

func (p *WebPushPlatform) DeviceToken(ctx context.Context) (string, error) {
	sub, err := p.subscription(ctx)
	if err != nil {
		return "", err
	}
	return EncodeToken(sub)
}

// SetSubscription stores the browser subscription, granting permission.
func (p *WebPushPlatform) SetSubscription(ctx context.Context, sub *webpush.Subscription) error {
	token, err := EncodeToken(sub)
	if err != nil {
		return err
	}
	if err := p.kv.Set(ctx, model.KeyWebPushSub, token); err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}
	return nil
}

func (p *WebPushPlatform) subscription(ctx context.Context) (*webpush.Subscription, error) {
	raw, err := p.kv.Get(ctx, model.KeyWebPushSub)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return DecodeToken(raw)
}

// EncodeToken serializes a subscription into a device token.
func EncodeToken(sub *webpush.Subscription) (string, error) {
	if sub == nil || sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return "", errors.New("subscription requires endpoint, p256dh and auth")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("marshal subscription: %w", err)
	}
	return string(raw), nil
}

// DecodeToken parses a device token back into a subscription.
func DecodeToken(token string) (*webpush.Subscription, error) {
	if token == "" {
		return nil, ErrNoSubscription
	}
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, ErrNoSubscription
	}
	return &sub, nil
}
