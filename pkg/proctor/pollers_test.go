package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	report FaceReport
	err    error
}

func (a *fakeAnalyzer) Analyze(Frame) (FaceReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report, a.err
}

func (a *fakeAnalyzer) set(r FaceReport) {
	a.mu.Lock()
	a.report = r
	a.mu.Unlock()
}

type fakeMeter struct {
	mu    sync.Mutex
	level float64
}

func (m *fakeMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *fakeMeter) set(v float64) {
	m.mu.Lock()
	m.level = v
	m.mu.Unlock()
}

func startPollerSession(t *testing.T, env *fakeEnv, capturer Capturer, d Detector) *Session {
	t.Helper()
	s := NewSession(SessionConfig{Capturer: NewCachedCapturer(capturer)}, nil)
	require.NoError(t, s.Start(env))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx, s)
	return s
}

func TestFaceGuardAbsenceAndCrowding(t *testing.T) {
	analyzer := &fakeAnalyzer{report: FaceReport{Count: 0}}
	guard := NewFaceGuard(analyzer)
	guard.interval = 10 * time.Millisecond

	capturer := &fakeCapturer{webcam: Frame("jpeg")}
	s := startPollerSession(t, newFakeEnv(), capturer, guard)

	require.Eventually(t, func() bool { return s.Warnings() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, FaceNotDetected, s.Violations()[0].Type)

	analyzer.set(FaceReport{Count: 2})
	require.Eventually(t, func() bool {
		for _, v := range s.Violations() {
			if v.Type == MultipleFaces {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFaceGuardGazeLimit(t *testing.T) {
	analyzer := &fakeAnalyzer{report: FaceReport{Count: 1, Yaw: 42}}
	guard := NewFaceGuard(analyzer)
	guard.interval = 10 * time.Millisecond

	s := startPollerSession(t, newFakeEnv(), &fakeCapturer{webcam: Frame("jpeg")}, guard)

	require.Eventually(t, func() bool { return s.Warnings() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, LookingAway, s.Violations()[0].Type)
}

func TestFaceGuardSingleStraightFaceIsClean(t *testing.T) {
	analyzer := &fakeAnalyzer{report: FaceReport{Count: 1, Yaw: 12, Pitch: -8}}
	guard := NewFaceGuard(analyzer)
	guard.interval = 5 * time.Millisecond

	s := startPollerSession(t, newFakeEnv(), &fakeCapturer{webcam: Frame("jpeg")}, guard)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, s.Warnings())
}

func TestFaceGuardSkipsBlankFramesAndAnalyzerErrors(t *testing.T) {
	analyzer := &fakeAnalyzer{report: FaceReport{Count: 0}, err: errors.New("model not loaded")}
	guard := NewFaceGuard(analyzer)
	guard.interval = 5 * time.Millisecond

	// No webcam frame at all: the sample is skipped before analysis.
	s := startPollerSession(t, newFakeEnv(), &fakeCapturer{}, guard)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, s.Warnings())
}

func TestAudioGuardCooldownLimitsReports(t *testing.T) {
	meter := &fakeMeter{level: 60}
	guard := NewAudioGuard(meter)
	guard.interval = 5 * time.Millisecond
	guard.cooldown = 500 * time.Millisecond

	s := startPollerSession(t, newFakeEnv(), &fakeCapturer{}, guard)

	require.Eventually(t, func() bool { return s.Warnings() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, SignificantNoise, s.Violations()[0].Type)

	// Sustained noise inside the cooldown window stays a single report.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, s.Warnings())
}

func TestAudioGuardIgnoresQuietRoom(t *testing.T) {
	meter := &fakeMeter{level: 30}
	guard := NewAudioGuard(meter)
	guard.interval = 5 * time.Millisecond

	s := startPollerSession(t, newFakeEnv(), &fakeCapturer{}, guard)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, s.Warnings())

	meter.set(46)
	require.Eventually(t, func() bool { return s.Warnings() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestDevToolsGuardIsEdgeTriggered(t *testing.T) {
	env := newFakeEnv()
	env.setMetrics(WindowMetrics{OuterWidth: 1920, InnerWidth: 1920, OuterHeight: 1080, InnerHeight: 1080})

	guard := NewDevToolsGuard(env)
	guard.interval = 5 * time.Millisecond

	s := startPollerSession(t, env, &fakeCapturer{}, guard)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, s.Warnings())

	// Pane opens: one violation however long it stays open.
	env.setMetrics(WindowMetrics{OuterWidth: 1920, InnerWidth: 1520, OuterHeight: 1080, InnerHeight: 1080})
	require.Eventually(t, func() bool { return s.Warnings() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, DevtoolsDetected, s.Violations()[0].Type)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, s.Warnings())

	// Close and reopen: a second transition, a second violation.
	env.setMetrics(WindowMetrics{OuterWidth: 1920, InnerWidth: 1920, OuterHeight: 1080, InnerHeight: 1080})
	time.Sleep(50 * time.Millisecond)
	env.setMetrics(WindowMetrics{OuterWidth: 1920, InnerWidth: 1920, OuterHeight: 1080, InnerHeight: 900})
	require.Eventually(t, func() bool { return s.Warnings() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDevToolsGuardIgnoresSmallChrome(t *testing.T) {
	env := newFakeEnv()
	// Ordinary browser chrome eats some pixels without meaning devtools.
	env.setMetrics(WindowMetrics{OuterWidth: 1920, InnerWidth: 1904, OuterHeight: 1080, InnerHeight: 960})

	guard := NewDevToolsGuard(env)
	guard.interval = 5 * time.Millisecond

	s := startPollerSession(t, env, &fakeCapturer{}, guard)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, s.Warnings())
}
