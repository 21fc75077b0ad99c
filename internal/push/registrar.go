package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/store"
)

// Registrar negotiates notification permission and keeps the device push
// token. Failures are logged and leave the registration degraded; they are
// never returned to the caller.
type Registrar struct {
	platform     Platform
	kv           store.KV
	tokenTimeout time.Duration
	logger       *slog.Logger

	mu  sync.RWMutex
	reg model.PushRegistration
}

// NewRegistrar creates a registrar. A zero tokenTimeout waits on the
// platform indefinitely.
func NewRegistrar(platform Platform, kv store.KV, tokenTimeout time.Duration, logger *slog.Logger) *Registrar {
	return &Registrar{
		platform:     platform,
		kv:           kv,
		tokenTimeout: tokenTimeout,
		logger:       logger,
	}
}

// Registration returns the last known registration state.
func (r *Registrar) Registration() model.PushRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg
}

// Hydrate loads a token persisted by an earlier session.
func (r *Registrar) Hydrate(ctx context.Context) {
	if !r.platform.Supported() {
		return
	}
	token, err := r.kv.Get(ctx, model.KeyPushToken)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		r.logger.Error("load push token", "error", err)
		return
	}
	r.mu.Lock()
	r.reg.Token = token
	r.mu.Unlock()
}

// Register checks permission, asks for it once if needed, and on grant
// obtains and persists the device token.
func (r *Registrar) Register(ctx context.Context) model.PushRegistration {
	if !r.platform.Supported() {
		r.logger.Info("push notifications not supported on this platform")
		r.setGranted(false)
		return r.Registration()
	}

	status, err := r.platform.PermissionStatus(ctx)
	if err != nil {
		r.logger.Warn("check notification permission", "error", err)
		status = PermissionUndetermined
	}
	if status != PermissionGranted {
		status, err = r.platform.RequestPermission(ctx)
		if err != nil {
			r.logger.Warn("request notification permission", "error", err)
			status = PermissionDenied
		}
	}
	if status != PermissionGranted {
		r.logger.Info("notification permission not granted", "status", string(status))
		r.setGranted(false)
		return r.Registration()
	}
	r.setGranted(true)

	tokenCtx := ctx
	if r.tokenTimeout > 0 {
		var cancel context.CancelFunc
		tokenCtx, cancel = context.WithTimeout(ctx, r.tokenTimeout)
		defer cancel()
	}

	token, err := r.platform.DeviceToken(tokenCtx)
	if err != nil {
		r.logger.Error("get push token", "error", err)
		return r.Registration()
	}
	if token == "" {
		r.logger.Warn("platform returned empty push token")
		return r.Registration()
	}

	r.mu.Lock()
	r.reg.Token = token
	r.mu.Unlock()

	if err := r.kv.Set(ctx, model.KeyPushToken, token); err != nil {
		r.logger.Error("persist push token", "error", err)
	}

	r.logger.Info("push registration complete")
	return r.Registration()
}

func (r *Registrar) setGranted(granted bool) {
	r.mu.Lock()
	r.reg.PermissionGranted = granted
	r.mu.Unlock()
}
