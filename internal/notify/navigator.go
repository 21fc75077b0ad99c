package notify

// Navigator routes the UI to a screen named in a notification payload.
type Navigator interface {
	Navigate(screen string, params map[string]any)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(screen string, params map[string]any)

func (f NavigatorFunc) Navigate(screen string, params map[string]any) {
	f(screen, params)
}

// NopNavigator drops navigation requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(string, map[string]any) {}
