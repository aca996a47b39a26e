package proctor

// CapabilityStatus is the outcome of a capability negotiation with the
// host platform.
type CapabilityStatus string

const (
	CapabilityGranted     CapabilityStatus = "granted"
	CapabilityDenied      CapabilityStatus = "denied"
	CapabilityUnsupported CapabilityStatus = "unsupported"
)

// Capability is a tagged negotiation result. Reason is set for denials.
type Capability struct {
	Status CapabilityStatus
	Reason string
}

// Granted reports whether the capability may be used.
func (c Capability) Granted() bool {
	return c.Status == CapabilityGranted
}

// Environment abstracts the exam client's platform surface: capability
// requests, UI events, and window geometry. The kiosk shell implements it.
type Environment interface {
	// RequestFullscreen asks the platform to enter fullscreen mode.
	RequestFullscreen() Capability
	// RequestWebcam and RequestScreen start the capture streams.
	RequestWebcam() Capability
	RequestScreen() Capability
	// ReleaseStreams stops and releases all live media tracks.
	ReleaseStreams()
	// Events delivers UI events (focus, keys, fullscreen changes, track
	// endings) for the lifetime of the session.
	Events() <-chan UIEvent
	// Metrics reports current window geometry.
	Metrics() WindowMetrics
}

// WindowMetrics is a snapshot of window geometry used by the devtools
// heuristic.
type WindowMetrics struct {
	OuterWidth  int
	InnerWidth  int
	OuterHeight int
	InnerHeight int
}

// PermissionError reports a capability the user or platform declined.
// Recoverable: the user may retry after granting.
type PermissionError struct {
	Capability string
	Reason     string
}

func (e *PermissionError) Error() string {
	if e.Reason == "" {
		return "permission denied: " + e.Capability
	}
	return "permission denied: " + e.Capability + ": " + e.Reason
}
