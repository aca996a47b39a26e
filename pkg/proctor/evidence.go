package proctor

import (
	"sync"
)

// Frame is a single captured image, typically JPEG bytes.
type Frame []byte

// Capturer grabs frames from the live capture streams.
type Capturer interface {
	CaptureWebcam() (Frame, error)
	CaptureScreen() (Frame, error)
}

// Evidence is the (webcam, screen) frame pair attached to a violation.
// Either side may be nil when no frame was ever available.
type Evidence struct {
	Webcam Frame
	Screen Frame
}

// CachedCapturer wraps a Capturer and remembers the last successful frame
// per stream. A failed grab returns the cached frame instead of nothing,
// so real violations never ship blank evidence.
type CachedCapturer struct {
	mu         sync.Mutex
	inner      Capturer
	lastWebcam Frame
	lastScreen Frame
}

// NewCachedCapturer wraps a raw capturer. inner may be nil when capture
// is unavailable entirely; Snapshot then returns empty evidence.
func NewCachedCapturer(inner Capturer) *CachedCapturer {
	return &CachedCapturer{inner: inner}
}

// Snapshot captures both streams on demand, falling back to the last
// known-good frame per stream on capture failure.
func (c *CachedCapturer) Snapshot() Evidence {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inner == nil {
		return Evidence{Webcam: c.lastWebcam, Screen: c.lastScreen}
	}

	if frame, err := c.inner.CaptureWebcam(); err == nil && len(frame) > 0 {
		c.lastWebcam = frame
	}
	if frame, err := c.inner.CaptureScreen(); err == nil && len(frame) > 0 {
		c.lastScreen = frame
	}

	return Evidence{Webcam: c.lastWebcam, Screen: c.lastScreen}
}

// WebcamFrame captures a fresh webcam frame with the same fallback rule.
func (c *CachedCapturer) WebcamFrame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inner != nil {
		if frame, err := c.inner.CaptureWebcam(); err == nil && len(frame) > 0 {
			c.lastWebcam = frame
		}
	}
	return c.lastWebcam
}
