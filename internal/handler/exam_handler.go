package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
)

// ExamHandler handles admin-facing exam management.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// Create godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// List godoc
// GET /api/v1/admin/exams?page=&limit=
func (h *ExamHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	exams, total, err := h.examService.List(c.Request.Context(), 0, limit, (page-1)*limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, response.NewPagination(page, limit, total))
}

// Get godoc
// GET /api/v1/admin/exams/:exam_id
func (h *ExamHandler) Get(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		failExamLookup(c, err)
		return
	}

	questions, err := h.examService.Questions(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam, "questions": questions})
}

// SetStatus godoc
// PATCH /api/v1/admin/exams/:exam_id/status
func (h *ExamHandler) SetStatus(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req struct {
		Status model.ExamStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED CLOSED"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.SetStatus(c.Request.Context(), examID, req.Status); err != nil {
		failExamLookup(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_id": examID, "status": req.Status})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/exams/:exam_id/questions
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req struct {
		Questions []model.Question `json:"questions" binding:"required"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.ReplaceQuestions(c.Request.Context(), examID, req.Questions); err != nil {
		failExamLookup(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_id": examID, "count": len(req.Questions)})
}

// parseExamID reads and validates the :exam_id route parameter, writing
// the error response itself on failure.
func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}

func failExamLookup(c *gin.Context, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
