package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks an exam attempt's lifecycle on the server side.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionSubmitted  SessionStatus = "submitted"
	SessionTerminated SessionStatus = "terminated"
)

// ExamSession is one student's attempt at one exam. StartedAt is recorded
// server-side on join and is the authority for elapsed-time checks; the
// client-reported time is advisory only.
type ExamSession struct {
	ID        uuid.UUID     `json:"id"`
	ExamID    uuid.UUID     `json:"exam_id"`
	StudentID int           `json:"student_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}
