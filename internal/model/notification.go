package model

// NotificationType classifies a notification for filtering and styling.
type NotificationType string

const (
	TypeSecurity    NotificationType = "security"
	TypeTransaction NotificationType = "transaction"
	TypeTheft       NotificationType = "theft"
	TypeSystem      NotificationType = "system"
	TypeMarketing   NotificationType = "marketing"
)

// NotificationTypes returns every known type in canonical order.
func NotificationTypes() []NotificationType {
	return []NotificationType{TypeSecurity, TypeTransaction, TypeTheft, TypeSystem, TypeMarketing}
}

// Valid reports whether t is one of the known types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeSecurity, TypeTransaction, TypeTheft, TypeSystem, TypeMarketing:
		return true
	}
	return false
}

// ParseNotificationType maps s to a known type, falling back to TypeSystem.
func ParseNotificationType(s string) NotificationType {
	t := NotificationType(s)
	if t.Valid() {
		return t
	}
	return TypeSystem
}

// Notification is a single inbox entry.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Data      map[string]any   `json:"data,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Read      bool             `json:"read"`
	Type      NotificationType `json:"type"`
}

// Screen returns the navigation target carried in the payload, if any.
func (n Notification) Screen() string {
	return StringField(n.Data, "screen")
}

// StringField reads a string value from an open payload, returning "" when
// the key is missing or holds a non-string value.
func StringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
