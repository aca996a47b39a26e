package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ViolationType identifies the integrity rule a detector saw broken.
// Restricted-key violations carry the offending key as a suffix,
// e.g. "restricted_key:F12".
type ViolationType string

const (
	ViolationExitedFullscreen ViolationType = "exited_fullscreen"
	ViolationTabSwitch        ViolationType = "tab_switch"
	ViolationFocusLost        ViolationType = "focus_lost"
	ViolationRestrictedKey    ViolationType = "restricted_key"
	ViolationWebcamEnded      ViolationType = "webcam_stream_terminated"
	ViolationScreenEnded      ViolationType = "screen_stream_terminated"
	ViolationFaceNotDetected  ViolationType = "face_not_detected"
	ViolationMultipleFaces    ViolationType = "multiple_faces"
	ViolationLookingAway      ViolationType = "looking_away"
	ViolationSignificantNoise ViolationType = "significant_noise"
	ViolationDevtoolsDetected ViolationType = "devtools_detected"
)

// Severity grades how strongly a violation suggests cheating.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFor returns the default severity for a violation type.
// DevTools detection stays low: the window-dimension heuristic has known
// false positives and must never terminate a session on its own.
func SeverityFor(t ViolationType) Severity {
	base := ViolationType(strings.SplitN(string(t), ":", 2)[0])
	switch base {
	case ViolationMultipleFaces:
		return SeverityCritical
	case ViolationWebcamEnded, ViolationScreenEnded, ViolationFaceNotDetected:
		return SeverityHigh
	case ViolationExitedFullscreen, ViolationTabSwitch, ViolationLookingAway:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Known reports whether t (or its "restricted_key:<key>" form) is a
// recognized violation type.
func (t ViolationType) Known() bool {
	base := ViolationType(strings.SplitN(string(t), ":", 2)[0])
	switch base {
	case ViolationExitedFullscreen, ViolationTabSwitch, ViolationFocusLost,
		ViolationRestrictedKey, ViolationWebcamEnded, ViolationScreenEnded,
		ViolationFaceNotDetected, ViolationMultipleFaces, ViolationLookingAway,
		ViolationSignificantNoise, ViolationDevtoolsDetected:
		return true
	}
	return false
}

// Violation is a single detected integrity breach. Immutable once created;
// a session's violations form an append-only, chronologically ordered list.
type Violation struct {
	ID        uuid.UUID     `json:"id"`
	ExamID    uuid.UUID     `json:"exam_id"`
	StudentID int           `json:"student_id"`
	Type      ViolationType `json:"type"`
	Severity  Severity      `json:"severity"`
	// Evidence frame paths under EVIDENCE_DIR; nil when capture was
	// unavailable at emission time.
	WebcamEvidence *string   `json:"webcam_evidence,omitempty"`
	ScreenEvidence *string   `json:"screen_evidence,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// IngestViolationRequest is the HTTP payload for the durability-fallback
// ingestion endpoint. Evidence images arrive base64-encoded.
type IngestViolationRequest struct {
	Type           string `json:"type" binding:"required,max=64"`
	Timestamp      int64  `json:"timestamp" binding:"required"`
	Severity       string `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	WebcamEvidence string `json:"webcam_evidence" binding:"omitempty"`
	ScreenEvidence string `json:"screen_evidence" binding:"omitempty"`
}
