package proctor

// UIEventKind identifies a platform UI event.
type UIEventKind string

const (
	EventFullscreenChange UIEventKind = "fullscreenchange"
	EventVisibilityChange UIEventKind = "visibilitychange"
	EventBlur             UIEventKind = "blur"
	EventFocus            UIEventKind = "focus"
	EventKeyDown          UIEventKind = "keydown"
	EventContextMenu      UIEventKind = "contextmenu"
	EventTrackEnded       UIEventKind = "trackended"
)

// Key describes a pressed key for KeyGuard.
type Key struct {
	Name string
	Ctrl bool
}

// UIEvent is one platform event delivered to the detector set. Suppress,
// when non-nil, cancels the platform's default handling of the event
// (the Go equivalent of preventDefault).
type UIEvent struct {
	Kind       UIEventKind
	Fullscreen bool   // EventFullscreenChange: current fullscreen state
	Hidden     bool   // EventVisibilityChange: page hidden
	Key        Key    // EventKeyDown
	Track      string // EventTrackEnded: "webcam" or "screen"
	Suppress   func()
}

func (ev UIEvent) suppress() {
	if ev.Suppress != nil {
		ev.Suppress()
	}
}
