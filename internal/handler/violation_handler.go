package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
)

// ViolationHandler is the HTTP fallback for violation reporting. Clients
// normally stream violations over the relay socket; this endpoint catches
// reports made while the socket is down.
type ViolationHandler struct {
	violationService *service.ViolationService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(violationService *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violationService: violationService}
}

// Report godoc
// POST /api/v1/student/exams/:exam_id/violations
func (h *ViolationHandler) Report(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.IngestViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	violation, err := h.violationService.Ingest(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownViolationType):
			response.Fail(c, http.StatusBadRequest, response.ErrUnknownViolation)
		case errors.Is(err, service.ErrEvidenceTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrEvidenceTooLarge)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	warnings := h.violationService.WarningCount(c.Request.Context(), examID, claims.UserID)
	response.Success(c, http.StatusAccepted, gin.H{
		"violation": violation,
		"warnings":  warnings,
	})
}

// ListByStudent godoc
// GET /api/v1/admin/exams/:exam_id/students/:student_id/violations
func (h *ViolationHandler) ListByStudent(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.violationService.ListByStudent(c.Request.Context(), examID, studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}
