package proctor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startGuardSession builds a session running a single event-driven
// detector against the fake environment.
func startGuardSession(t *testing.T, env *fakeEnv, build func(*Supervisor) Detector) *Session {
	t.Helper()
	sv := NewSupervisor()
	sv.Register(build(sv))

	s := NewSession(SessionConfig{ExamID: "exam-1", StudentID: 1}, sv)
	require.NoError(t, s.Start(env))
	t.Cleanup(sv.Stop)
	return s
}

func waitForWarnings(t *testing.T, s *Session, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Warnings() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFullscreenGuardBlocksUntilRestored(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewFullscreenGuard(sv) })

	assert.False(t, s.Blocked())

	env.events <- UIEvent{Kind: EventFullscreenChange, Fullscreen: false}
	waitForWarnings(t, s, 1)
	assert.Equal(t, ExitedFullscreen, s.Violations()[0].Type)
	assert.True(t, s.Blocked())

	env.events <- UIEvent{Kind: EventFullscreenChange, Fullscreen: true}
	require.Eventually(t, func() bool { return !s.Blocked() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Warnings(), "re-entering fullscreen is not a violation")
}

func TestFocusGuardDebouncesBlur(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewFocusGuard(sv) })

	// Blur immediately followed by focus is forgiven.
	env.events <- UIEvent{Kind: EventBlur}
	time.Sleep(100 * time.Millisecond)
	env.events <- UIEvent{Kind: EventFocus}

	time.Sleep(focusDebounce + 300*time.Millisecond)
	assert.Equal(t, 0, s.Warnings())

	// Blur with no recovery fires after the debounce.
	env.events <- UIEvent{Kind: EventBlur}
	waitForWarnings(t, s, 1)
	assert.Equal(t, FocusLost, s.Violations()[0].Type)
}

func TestFocusGuardTabSwitchIsImmediate(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewFocusGuard(sv) })

	env.events <- UIEvent{Kind: EventVisibilityChange, Hidden: true}
	waitForWarnings(t, s, 1)
	assert.Equal(t, TabSwitch, s.Violations()[0].Type)

	// Becoming visible again is not a violation.
	env.events <- UIEvent{Kind: EventVisibilityChange, Hidden: false}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, s.Warnings())
}

func TestKeyGuardSuppressesAndRecordsKeyName(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewKeyGuard(sv) })

	var suppressed atomic.Int32
	suppress := func() { suppressed.Add(1) }

	env.events <- UIEvent{Kind: EventKeyDown, Key: Key{Name: "F12"}, Suppress: suppress}
	waitForWarnings(t, s, 1)
	assert.Equal(t, ViolationType("restricted_key:F12"), s.Violations()[0].Type)

	env.events <- UIEvent{Kind: EventKeyDown, Key: Key{Name: "c", Ctrl: true}, Suppress: suppress}
	waitForWarnings(t, s, 2)
	assert.Equal(t, ViolationType("restricted_key:c"), s.Violations()[1].Type)
	assert.Equal(t, int32(2), suppressed.Load())

	// Ordinary typing passes through untouched.
	env.events <- UIEvent{Kind: EventKeyDown, Key: Key{Name: "c"}, Suppress: suppress}
	env.events <- UIEvent{Kind: EventKeyDown, Key: Key{Name: "Enter"}, Suppress: suppress}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, s.Warnings())
	assert.Equal(t, int32(2), suppressed.Load())
}

func TestContextMenuGuardSuppressesWithoutViolation(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewContextMenuGuard(sv) })

	var suppressed atomic.Int32
	env.events <- UIEvent{Kind: EventContextMenu, Suppress: func() { suppressed.Add(1) }}

	require.Eventually(t, func() bool {
		return suppressed.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Warnings())
}

func TestStreamGuardReportsEndedTracks(t *testing.T) {
	env := newFakeEnv()
	s := startGuardSession(t, env, func(sv *Supervisor) Detector { return NewStreamGuard(sv) })

	env.events <- UIEvent{Kind: EventTrackEnded, Track: "webcam"}
	waitForWarnings(t, s, 1)
	assert.Equal(t, WebcamEnded, s.Violations()[0].Type)

	env.events <- UIEvent{Kind: EventTrackEnded, Track: "screen"}
	waitForWarnings(t, s, 2)
	assert.Equal(t, ScreenEnded, s.Violations()[1].Type)
}
