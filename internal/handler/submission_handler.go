package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
)

// SubmissionHandler handles exam submission and the admin review surface.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/submit
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.submissionService.Submit(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	body := gin.H{"submission": outcome.Submission}
	if len(outcome.CodingResults) > 0 {
		body["coding_results"] = outcome.CodingResults
	}
	response.Success(c, http.StatusCreated, body)
}

// MySubmission godoc
// GET /api/v1/student/exams/:exam_id/submission
func (h *SubmissionHandler) MySubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	sub, err := h.submissionService.GetForStudent(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// ListByExam godoc
// GET /api/v1/admin/exams/:exam_id/submissions
func (h *SubmissionHandler) ListByExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	subs, err := h.submissionService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submissions": subs})
}

// Get godoc
// GET /api/v1/admin/submissions/:submission_id
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	sub, err := h.submissionService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// Review godoc
// PATCH /api/v1/admin/submissions/:submission_id
func (h *SubmissionHandler) Review(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	var req model.ReviewSubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.submissionService.Review(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

func parseSubmissionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
