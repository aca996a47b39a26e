package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sentra-edu/proctor-backend/internal/relay"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
)

const monitorKeepAlive = 25 * time.Second

// MonitorHandler exposes the proctor dashboard: roster snapshots, a live
// SSE feed mirroring the relay traffic, and the command bridge back to
// student clients.
type MonitorHandler struct {
	monitorService    *service.MonitorService
	submissionService *service.SubmissionService
	hub               *relay.Hub
	terminateGrace    time.Duration
	log               zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	monitorService *service.MonitorService,
	submissionService *service.SubmissionService,
	hub *relay.Hub,
	terminateGrace time.Duration,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		monitorService:    monitorService,
		submissionService: submissionService,
		hub:               hub,
		terminateGrace:    terminateGrace,
		log:               log.With().Str("component", "monitor_handler").Logger(),
	}
}

// Snapshot godoc
// GET /api/v1/admin/exams/:exam_id/monitor
func (h *MonitorHandler) Snapshot(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	entries, err := h.monitorService.Snapshot(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"students": entries})
}

// Stream godoc
// GET /api/v1/admin/exams/:exam_id/monitor/stream
// Server-sent events fallback for dashboards that cannot hold a
// WebSocket open. Events published by the relay layer are forwarded
// verbatim.
func (h *MonitorHandler) Stream(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshotEvent(c, reqCtx, examID)

	pubsub := h.monitorService.Subscribe(reqCtx, examID.String())
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAlive := time.NewTicker(monitorKeepAlive)
	defer keepAlive.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin detached from monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already the serialized relay message
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAlive.C:
			c.Writer.Write([]byte(": keep-alive\n\n"))
			c.Writer.Flush()
		}
	}
}

// Command godoc
// POST /api/v1/admin/exams/:exam_id/monitor/command
// Routes a proctor action ("warn" or "terminate") to a connected student.
// A terminate is followed by a server-side force submit after a short
// grace period, so the submission lands even if the client never acts.
func (h *MonitorHandler) Command(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req struct {
		StudentID int    `json:"student_id" binding:"required"`
		Action    string `json:"action" binding:"required,oneof=terminate warn"`
		Payload   string `json:"payload" binding:"omitempty,max=500"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	delivered := h.hub.RelayCommand(relay.AdminCommand{
		StudentID: req.StudentID,
		Action:    req.Action,
		Payload:   req.Payload,
	})

	if req.Action == relay.CommandTerminate {
		h.scheduleForceSubmit(examID, req.StudentID)
	} else if delivered == 0 {
		response.Fail(c, http.StatusNotFound, response.ErrStudentNotWatched)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"delivered": delivered})
}

// scheduleForceSubmit submits the student's autosaved answers after the
// grace period unless the client already submitted on its own.
func (h *MonitorHandler) scheduleForceSubmit(examID uuid.UUID, studentID int) {
	time.AfterFunc(h.terminateGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.submissionService.ForceSubmit(ctx, examID, studentID); err != nil {
			h.log.Error().Err(err).
				Str("exam_id", examID.String()).
				Int("student_id", studentID).
				Msg("Force submit after terminate failed")
		}
	})
}

func (h *MonitorHandler) sendSnapshotEvent(c *gin.Context, ctx context.Context, examID uuid.UUID) {
	entries, err := h.monitorService.Snapshot(ctx, examID)
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Monitor snapshot failed")
		return
	}

	c.SSEvent("message", map[string]interface{}{
		"type":     "snapshot",
		"students": entries,
	})
	c.Writer.Flush()
}
