package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeCoding         QuestionType = "CODING"
)

// Question represents a single exam question.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       uuid.UUID    `json:"exam_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	// Options holds MCQ choices as raw JSON (array of strings).
	Options json.RawMessage `json:"options,omitempty"`
	// CorrectAnswer is matched exactly, case-sensitive, one point, no
	// partial credit.
	CorrectAnswer string `json:"correct_answer,omitempty"`
	// Language and TestCases apply to CODING questions and are forwarded
	// to the sandbox collaborator untouched.
	Language  string          `json:"language,omitempty"`
	TestCases json.RawMessage `json:"test_cases,omitempty"`
	OrderNum  int             `json:"order_num"`
}

// QuestionForStudent is a question stripped of grading data, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	Language     string          `json:"language,omitempty"`
	OrderNum     int             `json:"order_num"`
}

// ForStudent strips grading fields from a question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		Language:     q.Language,
		OrderNum:     q.OrderNum,
	}
}
