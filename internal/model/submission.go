package model

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the final integrity classification of a submission.
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictCheating   Verdict = "cheating"
)

// Rank orders verdicts by severity (clean < suspicious < cheating).
func (v Verdict) Rank() int {
	switch v {
	case VerdictSuspicious:
		return 1
	case VerdictCheating:
		return 2
	default:
		return 0
	}
}

// BehavioralScore holds the three 0–100 risk sub-scores and their combined
// value. OverallRisk is the maximum of the three, so one strong signal is
// never diluted by two weak ones.
type BehavioralScore struct {
	TypingPattern  float64 `json:"typing_pattern"`
	PasteAnalysis  float64 `json:"paste_analysis"`
	TimingAnalysis float64 `json:"timing_analysis"`
	OverallRisk    float64 `json:"overall_risk"`
}

// PlagiarismMatch records a peer whose answers resemble this submission's.
type PlagiarismMatch struct {
	StudentID  int     `json:"student_id"`
	Similarity float64 `json:"similarity"`
}

// PlagiarismScore holds the closest-peer similarity result.
type PlagiarismScore struct {
	Percentage     float64           `json:"percentage"`
	IntegrityScore float64           `json:"integrity_score"`
	Matches        []PlagiarismMatch `json:"matches,omitempty"`
}

// Submission is a student's completed exam. At most one exists per
// (exam, student) pair; after creation only admin verdict/remarks fields
// may change.
type Submission struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	// Answers maps question order index (as a string) to the given answer.
	Answers          map[string]string `json:"answers"`
	Score            int               `json:"score"`
	MaxScore         int               `json:"max_score"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	Warnings         int               `json:"warnings"`
	SubmissionReason string            `json:"submission_reason"`
	Behavioral       BehavioralScore   `json:"behavioral_score"`
	Plagiarism       PlagiarismScore   `json:"plagiarism_score"`
	Verdict          Verdict           `json:"verdict"`
	AdminRemarks     string            `json:"admin_remarks,omitempty"`
	IsDisqualified   bool              `json:"is_disqualified"`
	IsLocked         bool              `json:"is_locked"`
	SubmittedAt      time.Time         `json:"submitted_at"`
}

// PeerSubmission pairs a student with their stored answers, the unit the
// plagiarism comparison consumes.
type PeerSubmission struct {
	StudentID int               `json:"student_id"`
	Answers   map[string]string `json:"answers"`
}

// BehavioralData is the raw client-reported activity log a submission
// carries for risk analysis. Malformed or missing data degrades to a
// zero-risk score, never a rejected submission.
type BehavioralData struct {
	// KeystrokeTimestamps are epoch milliseconds of individual keystrokes.
	KeystrokeTimestamps []int64      `json:"keystroke_timestamps,omitempty"`
	PasteEvents         []PasteEvent `json:"paste_events,omitempty"`
}

// PasteEvent records one clipboard insertion.
type PasteEvent struct {
	Length    int   `json:"length"`
	Timestamp int64 `json:"timestamp"`
}

// SubmitRequest is the final-payload contract from the exam client.
type SubmitRequest struct {
	Answers          map[string]string `json:"answers" binding:"required"`
	TimeTakenSeconds int               `json:"time_taken_seconds" binding:"min=0"`
	Warnings         int               `json:"warnings" binding:"min=0"`
	SubmissionReason string            `json:"submission_reason" binding:"omitempty,oneof=manual timeout max_warnings proctor_terminated"`
	BehavioralData   BehavioralData    `json:"behavioral_data"`
}

// ReviewSubmissionRequest is the admin payload for verdict overrides.
type ReviewSubmissionRequest struct {
	Verdict        *Verdict `json:"verdict" binding:"omitempty,oneof=clean suspicious cheating"`
	AdminRemarks   *string  `json:"admin_remarks" binding:"omitempty,max=2000"`
	IsDisqualified *bool    `json:"is_disqualified" binding:"omitempty"`
	IsLocked       *bool    `json:"is_locked" binding:"omitempty"`
}
