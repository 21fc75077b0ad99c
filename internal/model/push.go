package model

// PushRegistration is the device's push delivery state.
type PushRegistration struct {
	PermissionGranted bool   `json:"permission_granted"`
	Token             string `json:"token"`
}

// Persistent store keys.
const (
	KeyPushToken     = "push_token"
	KeyNotifications = "notifications"
	KeyWebPushSub    = "webpush_subscription"
)
