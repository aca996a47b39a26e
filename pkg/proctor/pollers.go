package proctor

import (
	"context"
	"time"
)

const (
	faceCheckInterval = 3 * time.Second
	gazeLimitDegrees  = 30.0
	noiseThresholdDB  = 45.0
	noiseCooldown     = 2 * time.Second
	devtoolsInterval  = 1 * time.Second
	devtoolsGapPixels = 160
)

// FaceReport is one analysis pass over a webcam frame.
type FaceReport struct {
	Count int
	// Yaw and Pitch are head pose angles in degrees for the primary
	// face. Meaningless when Count != 1.
	Yaw   float64
	Pitch float64
}

// FaceAnalyzer inspects webcam frames for presence and head pose. The
// implementation is platform-specific; an error means the frame could
// not be analyzed and the sample is skipped.
type FaceAnalyzer interface {
	Analyze(frame Frame) (FaceReport, error)
}

// AudioMeter samples the ambient microphone level in decibels.
type AudioMeter interface {
	Level() float64
}

// FaceGuard samples the webcam on a fixed interval and reports absence,
// extra faces, and sustained off-screen gaze.
type FaceGuard struct {
	analyzer FaceAnalyzer
	interval time.Duration
}

func NewFaceGuard(analyzer FaceAnalyzer) *FaceGuard {
	return &FaceGuard{analyzer: analyzer, interval: faceCheckInterval}
}

func (g *FaceGuard) Name() string { return "face_guard" }

func (g *FaceGuard) Run(ctx context.Context, s *Session) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev := s.Snapshot()
			if len(ev.Webcam) == 0 {
				continue
			}
			report, err := g.analyzer.Analyze(ev.Webcam)
			if err != nil {
				continue
			}
			switch {
			case report.Count == 0:
				s.RecordViolation(FaceNotDetected, ev)
			case report.Count > 1:
				s.RecordViolation(MultipleFaces, ev)
			case abs(report.Yaw) > gazeLimitDegrees || abs(report.Pitch) > gazeLimitDegrees:
				s.RecordViolation(LookingAway, ev)
			}
		}
	}
}

// AudioGuard reports sustained microphone noise above the threshold. A
// cooldown keeps a single loud conversation from flooding the audit
// trail with duplicates.
type AudioGuard struct {
	meter    AudioMeter
	interval time.Duration
	cooldown time.Duration
}

func NewAudioGuard(meter AudioMeter) *AudioGuard {
	return &AudioGuard{meter: meter, interval: 500 * time.Millisecond, cooldown: noiseCooldown}
}

func (g *AudioGuard) Name() string { return "audio_guard" }

func (g *AudioGuard) Run(ctx context.Context, s *Session) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var lastReport time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.meter.Level() <= noiseThresholdDB {
				continue
			}
			now := time.Now()
			if now.Sub(lastReport) < g.cooldown {
				continue
			}
			lastReport = now
			s.RecordViolation(SignificantNoise, s.Snapshot())
		}
	}
}

// DevToolsGuard infers an open inspector pane from the gap between the
// outer and inner window dimensions. Edge-triggered: one violation per
// transition into the open state, not one per poll.
type DevToolsGuard struct {
	env      Environment
	interval time.Duration
}

func NewDevToolsGuard(env Environment) *DevToolsGuard {
	return &DevToolsGuard{env: env, interval: devtoolsInterval}
}

func (g *DevToolsGuard) Name() string { return "devtools_guard" }

func (g *DevToolsGuard) Run(ctx context.Context, s *Session) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	open := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := g.env.Metrics()
			gap := m.OuterWidth-m.InnerWidth > devtoolsGapPixels ||
				m.OuterHeight-m.InnerHeight > devtoolsGapPixels
			if gap && !open {
				s.RecordViolation(DevtoolsDetected, s.Snapshot())
			}
			open = gap
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
