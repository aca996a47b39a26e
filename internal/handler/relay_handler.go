package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/relay"
	"github.com/sentra-edu/proctor-backend/internal/service"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// RelayHandler owns the two WebSocket endpoints: the student telemetry
// uplink and the admin monitor downlink. Both speak the relay envelope
// protocol and share the hub's room registry.
type RelayHandler struct {
	hub               *relay.Hub
	examService       *service.ExamService
	violationService  *service.ViolationService
	monitorService    *service.MonitorService
	submissionService *service.SubmissionService
	terminateGrace    time.Duration
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(
	hub *relay.Hub,
	examService *service.ExamService,
	violationService *service.ViolationService,
	monitorService *service.MonitorService,
	submissionService *service.SubmissionService,
	terminateGrace time.Duration,
	log zerolog.Logger,
	allowedOrigins []string,
) *RelayHandler {
	return &RelayHandler{
		hub:               hub,
		examService:       examService,
		violationService:  violationService,
		monitorService:    monitorService,
		submissionService: submissionService,
		terminateGrace:    terminateGrace,
		log:               log.With().Str("component", "relay_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// StudentStream godoc
// WS /ws/v1/student
// Telemetry uplink for exam clients: join-exam, pulses and violations in;
// remote proctor commands out.
func (h *RelayHandler) StudentStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := relay.NewConn(ws)
	conn.SetupPongHandler()
	go conn.WritePump()
	defer func() {
		h.hub.Drop(conn)
		conn.Close()
	}()

	studentID := claims.UserID
	wsLog := h.log.With().Int("student_id", studentID).Logger()
	wsLog.Info().Msg("Student connected")

	// Set by join-exam; pulses and violations are refused until then.
	var examID uuid.UUID

	for {
		var env relay.Envelope
		if err := conn.ReadEnvelope(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Student disconnected")
			}
			return
		}

		switch env.Action {
		case relay.ActionJoinExam:
			examID = h.handleJoinExam(c.Request.Context(), conn, wsLog, studentID, env.Data)

		case relay.ActionPulse:
			h.handlePulse(conn, studentID, examID, env.Data)

		case relay.ActionViolation:
			h.handleViolation(conn, wsLog, studentID, examID, env.Data)

		case relay.ActionPing:
			conn.Queue(relay.Message{Event: relay.EventPong})

		default:
			queueError(conn, "unknown action: "+string(env.Action))
		}
	}
}

// handleJoinExam validates availability, starts (or resumes) the
// server-side session and subscribes the connection to its command room.
// Returns uuid.Nil when the join was refused.
func (h *RelayHandler) handleJoinExam(ctx context.Context, conn *relay.Conn, wsLog zerolog.Logger, studentID int, data json.RawMessage) uuid.UUID {
	var req relay.JoinExamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		queueError(conn, "malformed join-exam payload")
		return uuid.Nil
	}

	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		queueError(conn, "invalid exam_id")
		return uuid.Nil
	}

	session, err := h.examService.StartSession(ctx, examID, studentID)
	if err != nil {
		wsLog.Warn().Err(err).Str("exam_id", req.ExamID).Msg("Join refused")
		queueError(conn, "exam is not available")
		return uuid.Nil
	}

	h.hub.Join(relay.StudentRoom(studentID), conn)
	h.hub.Touch(studentID)

	conn.Queue(relay.Message{Event: relay.EventJoined, Data: gin.H{
		"exam_id":    req.ExamID,
		"started_at": session.StartedAt,
	}})
	wsLog.Info().Str("exam_id", req.ExamID).Msg("Student joined exam")
	return examID
}

// handlePulse fans the pulse out to live monitors and mirrors it onto the
// Redis channel for SSE viewers. Identity fields are overwritten from the
// authenticated claims; a client cannot pulse as someone else.
func (h *RelayHandler) handlePulse(conn *relay.Conn, studentID int, examID uuid.UUID, data json.RawMessage) {
	if examID == uuid.Nil {
		queueError(conn, "join-exam first")
		return
	}

	var p relay.Pulse
	if err := json.Unmarshal(data, &p); err != nil {
		queueError(conn, "malformed pulse payload")
		return
	}
	p.ExamID = examID.String()
	p.StudentID = studentID

	h.hub.RelayPulse(p)
	h.monitorService.Publish(context.Background(), p.ExamID, relay.Message{
		Event: relay.EventMonitorUpdate,
		Data:  p,
	})
}

// handleViolation ingests the violation server-side, then alerts monitors
// with the authoritative warning count.
func (h *RelayHandler) handleViolation(conn *relay.Conn, wsLog zerolog.Logger, studentID int, examID uuid.UUID, data json.RawMessage) {
	if examID == uuid.Nil {
		queueError(conn, "join-exam first")
		return
	}

	var ev relay.ViolationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		queueError(conn, "malformed violation payload")
		return
	}

	req := &model.IngestViolationRequest{
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
	}
	if ev.Evidence != nil {
		req.WebcamEvidence = ev.Evidence.Webcam
		req.ScreenEvidence = ev.Evidence.Screen
	}

	ctx := context.Background()
	if _, err := h.violationService.Ingest(ctx, examID, studentID, req); err != nil {
		wsLog.Warn().Err(err).Str("type", ev.Type).Msg("Violation rejected")
		queueError(conn, "violation rejected: "+err.Error())
		return
	}

	ev.ExamID = examID.String()
	ev.StudentID = studentID
	ev.Violations = h.violationService.WarningCount(ctx, examID, studentID)

	// Evidence frames stay out of the fan-out; monitors fetch them over
	// HTTP from the evidence store when the proctor drills in.
	ev.Evidence = nil

	h.hub.RelayViolation(ev)
	h.monitorService.Publish(ctx, ev.ExamID, relay.Message{
		Event: relay.EventMonitorAlert,
		Data:  ev,
	})
}

// MonitorStream godoc
// WS /ws/v1/monitor
// Admin downlink: join-monitor subscribes to an exam's telemetry,
// admin-action routes commands back to students.
func (h *RelayHandler) MonitorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := relay.NewConn(ws)
	conn.SetupPongHandler()
	go conn.WritePump()
	defer func() {
		h.hub.Drop(conn)
		conn.Close()
	}()

	wsLog := h.log.With().Int("admin_id", claims.UserID).Logger()
	wsLog.Info().Msg("Monitor connected")

	var examID uuid.UUID

	for {
		var env relay.Envelope
		if err := conn.ReadEnvelope(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Monitor disconnected")
			}
			return
		}

		switch env.Action {
		case relay.ActionJoinMonitor:
			joined := h.handleJoinMonitor(c.Request.Context(), conn, wsLog, env.Data)
			if joined != uuid.Nil && examID != uuid.Nil && joined != examID {
				h.hub.Leave(relay.MonitorRoom(examID.String()), conn)
			}
			if joined != uuid.Nil {
				examID = joined
			}

		case relay.ActionAdminAction:
			h.handleAdminAction(conn, wsLog, examID, env.Data)

		case relay.ActionPing:
			conn.Queue(relay.Message{Event: relay.EventPong})

		default:
			queueError(conn, "unknown action: "+string(env.Action))
		}
	}
}

func (h *RelayHandler) handleJoinMonitor(ctx context.Context, conn *relay.Conn, wsLog zerolog.Logger, data json.RawMessage) uuid.UUID {
	var req relay.JoinMonitorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		queueError(conn, "malformed join-monitor payload")
		return uuid.Nil
	}

	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		queueError(conn, "invalid exam_id")
		return uuid.Nil
	}

	h.hub.Join(relay.MonitorRoom(req.ExamID), conn)

	// A fresh viewer starts from the current roster, then follows deltas.
	entries, err := h.monitorService.Snapshot(ctx, examID)
	if err != nil {
		wsLog.Error().Err(err).Str("exam_id", req.ExamID).Msg("Monitor snapshot failed")
		entries = nil
	}
	conn.Queue(relay.Message{Event: relay.EventJoined, Data: gin.H{
		"exam_id":  req.ExamID,
		"students": entries,
	}})

	wsLog.Info().Str("exam_id", req.ExamID).Msg("Monitor joined exam")
	return examID
}

func (h *RelayHandler) handleAdminAction(conn *relay.Conn, wsLog zerolog.Logger, examID uuid.UUID, data json.RawMessage) {
	if examID == uuid.Nil {
		queueError(conn, "join-monitor first")
		return
	}

	var cmd relay.AdminCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		queueError(conn, "malformed admin-action payload")
		return
	}
	if cmd.Action != relay.CommandTerminate && cmd.Action != relay.CommandWarn {
		queueError(conn, "unsupported action: "+cmd.Action)
		return
	}

	delivered := h.hub.RelayCommand(cmd)
	wsLog.Info().
		Int("student_id", cmd.StudentID).
		Str("action", cmd.Action).
		Int("delivered", delivered).
		Msg("Admin command relayed")

	if cmd.Action == relay.CommandTerminate {
		h.scheduleForceSubmit(examID, cmd.StudentID)
	}
}

// scheduleForceSubmit lands the student's autosaved answers after the
// grace period; the client gets a window to submit cleanly first.
func (h *RelayHandler) scheduleForceSubmit(examID uuid.UUID, studentID int) {
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

func queueError(conn *relay.Conn, msg string) {
	conn.Queue(relay.Message{Event: relay.EventError, Data: relay.ErrorData{Error: msg}})
}
