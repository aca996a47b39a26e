// Package proctor is the client-side proctoring pipeline: a set of
// violation detectors over abstract platform signals, the exam session
// state machine, and the telemetry client that streams pulses and
// violations to the monitoring backend.
package proctor

import (
	"context"
	"sync"
)

// ViolationType identifies the integrity rule a detector saw broken.
// Must match the server-side vocabulary.
type ViolationType string

const (
	ExitedFullscreen ViolationType = "exited_fullscreen"
	TabSwitch        ViolationType = "tab_switch"
	FocusLost        ViolationType = "focus_lost"
	RestrictedKey    ViolationType = "restricted_key"
	WebcamEnded      ViolationType = "webcam_stream_terminated"
	ScreenEnded      ViolationType = "screen_stream_terminated"
	FaceNotDetected  ViolationType = "face_not_detected"
	MultipleFaces    ViolationType = "multiple_faces"
	LookingAway      ViolationType = "looking_away"
	SignificantNoise ViolationType = "significant_noise"
	DevtoolsDetected ViolationType = "devtools_detected"
)

// Detector is one independent violation heuristic. Run blocks until ctx
// is canceled; emissions go through the session.
type Detector interface {
	Name() string
	Run(ctx context.Context, s *Session)
}

// Supervisor owns the detector set as cancellable tasks. Session cleanup
// is a single cancel-all instead of scattered interval clears.
type Supervisor struct {
	detectors []Detector
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// fanout copies platform events to each event-driven detector.
	subscribers []chan UIEvent
	mu          sync.Mutex
}

// NewSupervisor creates a Supervisor over the given detectors.
func NewSupervisor(detectors ...Detector) *Supervisor {
	return &Supervisor{detectors: detectors}
}

// Register adds a detector. Call before Start; event-driven detectors
// take the supervisor in their constructor, so registration is a second
// step rather than a NewSupervisor argument.
func (sv *Supervisor) Register(detectors ...Detector) {
	sv.detectors = append(sv.detectors, detectors...)
}

// Subscribe returns a buffered event channel fed by the dispatch loop.
// Event-driven detectors call this once at Run start.
func (sv *Supervisor) Subscribe() <-chan UIEvent {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	ch := make(chan UIEvent, 16)
	sv.subscribers = append(sv.subscribers, ch)
	return ch
}

// Start launches every detector plus the event dispatch loop.
func (sv *Supervisor) Start(parent context.Context, env Environment, s *Session) {
	ctx, cancel := context.WithCancel(parent)
	sv.cancel = cancel

	for _, d := range sv.detectors {
		sv.wg.Add(1)
		go func(d Detector) {
			defer sv.wg.Done()
			d.Run(ctx, s)
		}(d)
	}

	sv.wg.Add(1)
	go func() {
		defer sv.wg.Done()
		sv.dispatch(ctx, env.Events())
	}()
}

// dispatch copies each platform event to every subscriber. A full
// subscriber buffer drops the event; detectors are best-effort.
func (sv *Supervisor) dispatch(ctx context.Context, events <-chan UIEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sv.mu.Lock()
			for _, ch := range sv.subscribers {
				select {
				case ch <- ev:
				default:
				}
			}
			sv.mu.Unlock()
		}
	}
}

// Stop cancels every detector and waits for them to exit.
func (sv *Supervisor) Stop() {
	if sv.cancel != nil {
		sv.cancel()
	}
	sv.wg.Wait()
}
