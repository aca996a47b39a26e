package proctor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv is a scriptable Environment. All capabilities grant unless a
// denial is configured.
type fakeEnv struct {
	mu sync.Mutex

	denyFullscreen bool
	denyWebcam     bool
	denyScreen     bool

	events  chan UIEvent
	metrics WindowMetrics

	released bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{events: make(chan UIEvent, 32)}
}

func (e *fakeEnv) cap(denied bool) Capability {
	if denied {
		return Capability{Status: CapabilityDenied, Reason: "user declined"}
	}
	return Capability{Status: CapabilityGranted}
}

func (e *fakeEnv) RequestFullscreen() Capability { return e.cap(e.denyFullscreen) }
func (e *fakeEnv) RequestWebcam() Capability     { return e.cap(e.denyWebcam) }
func (e *fakeEnv) RequestScreen() Capability     { return e.cap(e.denyScreen) }

func (e *fakeEnv) ReleaseStreams() {
	e.mu.Lock()
	e.released = true
	e.mu.Unlock()
}

func (e *fakeEnv) Events() <-chan UIEvent { return e.events }

func (e *fakeEnv) Metrics() WindowMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

func (e *fakeEnv) setMetrics(m WindowMetrics) {
	e.mu.Lock()
	e.metrics = m
	e.mu.Unlock()
}

// fakeCapturer returns fixed frames.
type fakeCapturer struct {
	webcam Frame
	screen Frame
	err    error
}

func (c *fakeCapturer) CaptureWebcam() (Frame, error) { return c.webcam, c.err }
func (c *fakeCapturer) CaptureScreen() (Frame, error) { return c.screen, c.err }

func TestStartDeniedCapabilityIsRetryable(t *testing.T) {
	env := newFakeEnv()
	env.denyFullscreen = true

	s := NewSession(SessionConfig{ExamID: "exam-1", StudentID: 1}, nil)

	err := s.Start(env)
	require.Error(t, err)

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "fullscreen", perm.Capability)
	assert.Equal(t, StateIdle, s.State(), "a denied start must leave the session idle")

	// Grant and retry.
	env.denyFullscreen = false
	require.NoError(t, s.Start(env))
	assert.Equal(t, StateActive, s.State())
}

func TestStartRequiresWebcam(t *testing.T) {
	env := newFakeEnv()
	env.denyWebcam = true

	s := NewSession(SessionConfig{}, nil)
	err := s.Start(env)

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "webcam", perm.Capability)
}

func TestAutoSubmitAtWarningLimit(t *testing.T) {
	results := make(chan Result, 1)
	s := NewSession(SessionConfig{
		ExamID:      "exam-1",
		StudentID:   9,
		MaxWarnings: 3,
		Submit: func(res Result) error {
			results <- res
			return nil
		},
	}, nil)
	require.NoError(t, s.Start(newFakeEnv()))

	s.RecordViolation(TabSwitch, Evidence{})
	s.RecordViolation(FocusLost, Evidence{})
	assert.Equal(t, StateActive, s.State(), "below the limit the session stays active")

	s.RecordViolation(ExitedFullscreen, Evidence{})
	assert.Equal(t, StateSubmitted, s.State())

	select {
	case res := <-results:
		assert.Equal(t, ReasonMaxWarnings, res.Reason)
		assert.Equal(t, 3, res.Warnings)
		require.Len(t, res.Violations, 3)
		assert.Equal(t, TabSwitch, res.Violations[0].Type)
		assert.Equal(t, ExitedFullscreen, res.Violations[2].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit payload never delivered")
	}
}

func TestNoViolationsAfterTerminalState(t *testing.T) {
	s := NewSession(SessionConfig{ExamID: "exam-1"}, nil)
	require.NoError(t, s.Start(newFakeEnv()))

	s.RecordViolation(TabSwitch, Evidence{})
	require.NoError(t, s.Submit(ReasonManual))

	s.RecordViolation(FocusLost, Evidence{})
	s.RecordViolation(FocusLost, Evidence{})

	assert.Equal(t, 1, s.Warnings())
	assert.Len(t, s.Violations(), 1)
}

func TestWarningCountMatchesViolationTrail(t *testing.T) {
	s := NewSession(SessionConfig{}, nil)
	require.NoError(t, s.Start(newFakeEnv()))

	types := []ViolationType{TabSwitch, FocusLost, SignificantNoise, TabSwitch}
	for _, vt := range types {
		s.RecordViolation(vt, Evidence{})
	}

	violations := s.Violations()
	require.Equal(t, s.Warnings(), len(violations))
	for i, vt := range types {
		assert.Equal(t, vt, violations[i].Type, "order must be preserved")
	}
}

func TestSubmitDeliveryFailureIsRetryable(t *testing.T) {
	attempts := 0
	s := NewSession(SessionConfig{
		Submit: func(Result) error {
			attempts++
			if attempts == 1 {
				return errors.New("network down")
			}
			return nil
		},
	}, nil)
	env := newFakeEnv()
	require.NoError(t, s.Start(env))

	require.Error(t, s.Submit(ReasonManual))
	assert.Equal(t, StateSubmitted, s.State())

	require.NoError(t, s.Submit(ReasonManual))
	assert.Equal(t, 2, attempts)

	env.mu.Lock()
	released := env.released
	env.mu.Unlock()
	assert.True(t, released, "streams must be released on the first attempt")
}

func TestTerminateSendsNoPayload(t *testing.T) {
	submitted := false
	s := NewSession(SessionConfig{
		Submit: func(Result) error {
			submitted = true
			return nil
		},
	}, nil)
	env := newFakeEnv()
	require.NoError(t, s.Start(env))

	s.Terminate()
	assert.Equal(t, StateTerminated, s.State())

	require.Eventually(t, func() bool {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.released
	}, time.Second, 10*time.Millisecond)
	assert.False(t, submitted)

	assert.Equal(t, ErrTerminal, s.Submit(ReasonManual))
}

func TestRestoreCarriesWarningsAcrossRestart(t *testing.T) {
	startedAt := time.Now().Add(-10 * time.Minute)
	snap := SessionSnapshot{
		StartedAt: startedAt,
		Warnings:  2,
		Violations: []ViolationRecord{
			{Type: TabSwitch, Timestamp: startedAt.Add(time.Minute)},
			{Type: FocusLost, Timestamp: startedAt.Add(2 * time.Minute)},
		},
	}

	s := NewSession(SessionConfig{MaxWarnings: 3}, nil)
	require.NoError(t, s.Restore(snap))
	require.NoError(t, s.Start(newFakeEnv()))

	assert.Equal(t, 2, s.Warnings())
	assert.Equal(t, startedAt, s.StartedAt(), "elapsed time spans the restart")

	// One more violation tips the restored count over the limit.
	s.RecordViolation(SignificantNoise, Evidence{})
	assert.Equal(t, StateSubmitted, s.State())

	assert.Equal(t, ErrNotIdle, s.Restore(snap))
}
