package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
)

// StudentHandler handles the student exam portal: joining an exam,
// fetching questions and autosaving answers.
type StudentHandler struct {
	examService *service.ExamService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(examService *service.ExamService) *StudentHandler {
	return &StudentHandler{examService: examService}
}

// Join godoc
// POST /api/v1/student/exams/:exam_id/join
// Starts (or resumes) the server-side session and returns the stripped
// question set plus any autosaved answers.
func (h *StudentHandler) Join(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	session, err := h.examService.StartSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failAvailability(c, err)
		return
	}

	exam, questions, err := h.examService.QuestionsForStudent(c.Request.Context(), examID)
	if err != nil {
		failAvailability(c, err)
		return
	}

	saved, err := h.examService.SavedAnswers(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam": gin.H{
			"id":               exam.ID,
			"title":            exam.Title,
			"duration_minutes": exam.DurationMinutes,
			"max_warnings":     exam.MaxWarnings,
		},
		"session":       session,
		"questions":     questions,
		"saved_answers": saved,
	})
}

// SaveAnswers godoc
// PUT /api/v1/student/exams/:exam_id/answers
// Autosaves the full in-progress answer map. Overwrites the previous
// save; the client sends its complete state each time.
func (h *StudentHandler) SaveAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req struct {
		Answers map[string]string `json:"answers" binding:"required"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.SaveAnswers(c.Request.Context(), examID, claims.UserID, req.Answers); err != nil {
		failAvailability(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": len(req.Answers)})
}

func failAvailability(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotAvailable)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
