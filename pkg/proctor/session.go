package proctor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the session lifecycle phase. Transitions are one-way:
// idle -> active -> submitted | terminated.
type State string

const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StateSubmitted  State = "submitted"
	StateTerminated State = "terminated"
)

// SubmitReason tags why the session ended. Matches the server vocabulary.
type SubmitReason string

const (
	ReasonManual      SubmitReason = "manual"
	ReasonTimeout     SubmitReason = "timeout"
	ReasonMaxWarnings SubmitReason = "max_warnings"
	ReasonTerminated  SubmitReason = "proctor_terminated"
)

var (
	ErrNotIdle   = errors.New("session already started")
	ErrNotActive = errors.New("session is not active")
	ErrTerminal  = errors.New("session already ended")
)

// ViolationRecord is one detector emission with its capture evidence.
type ViolationRecord struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Evidence  Evidence      `json:"-"`
}

// Result is the final payload handed to the submit callback.
type Result struct {
	ExamID           string
	StudentID        int
	Reason           SubmitReason
	Warnings         int
	Violations       []ViolationRecord
	TimeTakenSeconds int
}

// SessionConfig wires a session to its host.
type SessionConfig struct {
	ExamID      string
	StudentID   int
	StudentName string

	// MaxWarnings is the auto-submit threshold. Zero disables it.
	MaxWarnings int

	Capturer *CachedCapturer

	// OnViolation fires after each recorded violation with the running
	// warning count. Telemetry hangs off this hook.
	OnViolation func(rec ViolationRecord, warnings int)

	// Submit delivers the final payload. An error is retryable: call
	// Session.Submit again with the same reason.
	Submit func(res Result) error
}

// Session is the exam attempt state machine. Detectors feed it
// violations; it accumulates warnings, auto-submits at the limit, and
// owns teardown of the detector set and capture streams.
type Session struct {
	mu  sync.Mutex
	cfg SessionConfig

	state      State
	fullscreen bool
	warnings   int
	violations []ViolationRecord
	reason     SubmitReason
	startedAt  time.Time

	env Environment
	sv  *Supervisor

	teardown sync.Once
}

// NewSession builds an idle session over the given detector set. sv may
// be nil for hosts that drive RecordViolation directly.
func NewSession(cfg SessionConfig, sv *Supervisor) *Session {
	if cfg.Capturer == nil {
		cfg.Capturer = NewCachedCapturer(nil)
	}
	return &Session{cfg: cfg, sv: sv, state: StateIdle}
}

// Start negotiates the required capabilities and launches the detectors.
// Fullscreen and webcam are mandatory; a denial returns a
// PermissionError and leaves the session idle so the host can re-prompt
// and retry. Screen capture is mandatory where supported.
func (s *Session) Start(env Environment) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.mu.Unlock()

	if cap := env.RequestFullscreen(); !cap.Granted() {
		return &PermissionError{Capability: "fullscreen", Reason: cap.Reason}
	}
	if cap := env.RequestWebcam(); !cap.Granted() {
		return &PermissionError{Capability: "webcam", Reason: cap.Reason}
	}
	if cap := env.RequestScreen(); cap.Status == CapabilityDenied {
		return &PermissionError{Capability: "screen", Reason: cap.Reason}
	}

	s.mu.Lock()
	s.state = StateActive
	s.fullscreen = true
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	s.env = env
	s.mu.Unlock()

	if s.sv != nil {
		s.sv.Start(context.Background(), env, s)
	}
	return nil
}

// RecordViolation appends a violation and bumps the warning count. A
// no-op once the session has left the active state, so late detector
// emissions during teardown are dropped. Hitting the warning limit
// auto-submits with reason max_warnings.
func (s *Session) RecordViolation(t ViolationType, ev Evidence) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	rec := ViolationRecord{Type: t, Timestamp: time.Now(), Evidence: ev}
	s.violations = append(s.violations, rec)
	s.warnings++
	count := s.warnings
	hook := s.cfg.OnViolation

	limitHit := s.cfg.MaxWarnings > 0 && s.warnings >= s.cfg.MaxWarnings
	if limitHit {
		s.state = StateSubmitted
		s.reason = ReasonMaxWarnings
	}
	s.mu.Unlock()

	if hook != nil {
		hook(rec, count)
	}
	if limitHit {
		// Teardown waits on the detector goroutines, and this method is
		// called from them. Finish on a fresh goroutine.
		go s.finish()
	}
}

// Submit ends the session deliberately. On a delivery error the session
// stays in the submitted state with detectors already stopped; calling
// Submit again retries delivery only.
func (s *Session) Submit(reason SubmitReason) error {
	s.mu.Lock()
	switch s.state {
	case StateActive:
		s.state = StateSubmitted
		s.reason = reason
	case StateSubmitted:
		// retry path
	default:
		s.mu.Unlock()
		return ErrTerminal
	}
	s.mu.Unlock()
	return s.finish()
}

// Terminate ends the session on a proctor command. No payload is sent;
// the backend force-submits on its side.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.reason = ReasonTerminated
	s.mu.Unlock()
	go s.stopAll()
}

func (s *Session) finish() error {
	s.stopAll()
	if s.cfg.Submit == nil {
		return nil
	}

	s.mu.Lock()
	res := Result{
		ExamID:     s.cfg.ExamID,
		StudentID:  s.cfg.StudentID,
		Reason:     s.reason,
		Warnings:   s.warnings,
		Violations: append([]ViolationRecord(nil), s.violations...),
	}
	if !s.startedAt.IsZero() {
		res.TimeTakenSeconds = int(time.Since(s.startedAt).Seconds())
	}
	s.mu.Unlock()

	return s.cfg.Submit(res)
}

func (s *Session) stopAll() {
	s.teardown.Do(func() {
		if s.sv != nil {
			s.sv.Stop()
		}
		if s.env != nil {
			s.env.ReleaseStreams()
		}
	})
}

// Restore rehydrates warning state from a saved snapshot. Only valid
// before Start; the restored startedAt survives activation so elapsed
// time spans the restart.
func (s *Session) Restore(snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.warnings = snap.Warnings
	s.violations = append([]ViolationRecord(nil), snap.Violations...)
	s.startedAt = snap.StartedAt
	return nil
}

// Snapshot captures current evidence frames.
func (s *Session) Snapshot() Evidence {
	return s.cfg.Capturer.Snapshot()
}

func (s *Session) setFullscreen(on bool) {
	s.mu.Lock()
	s.fullscreen = on
	s.mu.Unlock()
}

// Blocked reports whether the host UI must block input: the session is
// active but the window has left fullscreen.
func (s *Session) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive && !s.fullscreen
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Warnings returns the accumulated warning count.
func (s *Session) Warnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings
}

// Violations returns a copy of the recorded violations in order.
func (s *Session) Violations() []ViolationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ViolationRecord(nil), s.violations...)
}

// StartedAt is the activation time, zero while idle.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}
