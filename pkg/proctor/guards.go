package proctor

import (
	"context"
	"strings"
	"time"
)

// focusDebounce is how long window blur must persist before it counts as
// focus truly lost. Alt-tabbing through and straight back is forgiven.
const focusDebounce = 1 * time.Second

// disallowedKeys is the fixed set KeyGuard intercepts outright.
var disallowedKeys = map[string]struct{}{
	"Alt":         {},
	"Tab":         {},
	"Meta":        {},
	"F12":         {},
	"PrintScreen": {},
}

// disallowedCtrlKeys are blocked only in combination with Ctrl.
var disallowedCtrlKeys = map[string]struct{}{
	"c": {},
	"v": {},
	"p": {},
}

// FullscreenGuard watches fullscreen changes. Leaving fullscreen emits a
// violation and blocks the session UI until fullscreen is restored — the
// one detector with recoverable state, not just an event.
type FullscreenGuard struct {
	sv *Supervisor
}

func NewFullscreenGuard(sv *Supervisor) *FullscreenGuard { return &FullscreenGuard{sv: sv} }

func (g *FullscreenGuard) Name() string { return "fullscreen_guard" }

func (g *FullscreenGuard) Run(ctx context.Context, s *Session) {
	events := g.sv.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind != EventFullscreenChange {
				continue
			}
			if ev.Fullscreen {
				s.setFullscreen(true)
				continue
			}
			s.setFullscreen(false)
			s.RecordViolation(ExitedFullscreen, s.Snapshot())
		}
	}
}

// FocusGuard emits tab_switch on visibility loss immediately and
// focus_lost after a debounce confirming the window blur stuck.
type FocusGuard struct {
	sv *Supervisor
}

func NewFocusGuard(sv *Supervisor) *FocusGuard { return &FocusGuard{sv: sv} }

func (g *FocusGuard) Name() string { return "focus_guard" }

func (g *FocusGuard) Run(ctx context.Context, s *Session) {
	events := g.sv.Subscribe()

	var blurTimer *time.Timer
	stopTimer := func() {
		if blurTimer != nil {
			blurTimer.Stop()
			blurTimer = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Kind {
			case EventVisibilityChange:
				if ev.Hidden {
					s.RecordViolation(TabSwitch, s.Snapshot())
				}
			case EventBlur:
				stopTimer()
				blurTimer = time.AfterFunc(focusDebounce, func() {
					s.RecordViolation(FocusLost, s.Snapshot())
				})
			case EventFocus:
				stopTimer()
			}
		}
	}
}

// KeyGuard suppresses the disallowed key set and emits
// restricted_key:<key> for each interception.
type KeyGuard struct {
	sv *Supervisor
}

func NewKeyGuard(sv *Supervisor) *KeyGuard { return &KeyGuard{sv: sv} }

func (g *KeyGuard) Name() string { return "key_guard" }

func (g *KeyGuard) Run(ctx context.Context, s *Session) {
	events := g.sv.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind != EventKeyDown {
				continue
			}
			if !keyDisallowed(ev.Key) {
				continue
			}
			ev.suppress()
			t := ViolationType(string(RestrictedKey) + ":" + ev.Key.Name)
			s.RecordViolation(t, s.Snapshot())
		}
	}
}

func keyDisallowed(k Key) bool {
	if _, ok := disallowedKeys[k.Name]; ok {
		return true
	}
	if k.Ctrl {
		if _, ok := disallowedCtrlKeys[strings.ToLower(k.Name)]; ok {
			return true
		}
	}
	return false
}

// ContextMenuGuard unconditionally suppresses right-click. Pure
// suppression: no violation is emitted.
type ContextMenuGuard struct {
	sv *Supervisor
}

func NewContextMenuGuard(sv *Supervisor) *ContextMenuGuard { return &ContextMenuGuard{sv: sv} }

func (g *ContextMenuGuard) Name() string { return "contextmenu_guard" }

func (g *ContextMenuGuard) Run(ctx context.Context, s *Session) {
	events := g.sv.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind == EventContextMenu {
				ev.suppress()
			}
		}
	}
}

// StreamGuard emits a violation when the platform or user kills a live
// capture track.
type StreamGuard struct {
	sv *Supervisor
}

func NewStreamGuard(sv *Supervisor) *StreamGuard { return &StreamGuard{sv: sv} }

func (g *StreamGuard) Name() string { return "stream_guard" }

func (g *StreamGuard) Run(ctx context.Context, s *Session) {
	events := g.sv.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind != EventTrackEnded {
				continue
			}
			switch ev.Track {
			case "webcam":
				s.RecordViolation(WebcamEnded, s.Snapshot())
			case "screen":
				s.RecordViolation(ScreenEnded, s.Snapshot())
			}
		}
	}
}
