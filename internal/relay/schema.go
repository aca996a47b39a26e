package relay

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionJoinExam    Action = "join-exam"
	ActionJoinMonitor Action = "join-monitor"
	ActionPulse       Action = "student-pulse"
	ActionViolation   Action = "violation"
	ActionAdminAction Action = "admin-action"
	ActionPing        Action = "ping"
)

// Envelope wraps every inbound message so the action can be inspected
// before the payload is parsed.
type Envelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// JoinExamRequest subscribes a student connection to its command room and
// the exam's telemetry fan-in.
type JoinExamRequest struct {
	ExamID    string `json:"exam_id"`
	StudentID int    `json:"student_id"`
}

// JoinMonitorRequest subscribes an admin connection to an exam's monitor room.
type JoinMonitorRequest struct {
	ExamID string `json:"exam_id"`
}

// Pulse is the periodic student-state snapshot fanned out to monitors
// unmodified. Webcam and Screen carry data-URL encoded frames.
type Pulse struct {
	ExamID     string `json:"exam_id"`
	StudentID  int    `json:"student_id"`
	Name       string `json:"name"`
	Webcam     string `json:"webcam,omitempty"`
	Screen     string `json:"screen,omitempty"`
	Violations int    `json:"violations"`
}

// ViolationEvent is relayed to monitors immediately on a separate alert
// channel so critical events are not delayed by the pulse interval.
type ViolationEvent struct {
	ExamID     string           `json:"exam_id"`
	StudentID  int              `json:"student_id"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Evidence   *EvidencePayload `json:"evidence,omitempty"`
	Timestamp  int64            `json:"timestamp"`
	Violations int              `json:"violations"`
}

// EvidencePayload carries base64-encoded evidence frames.
type EvidencePayload struct {
	Webcam string `json:"webcam,omitempty"`
	Screen string `json:"screen,omitempty"`
}

// AdminCommand is routed to a single student room. Supported actions are
// "terminate" and "warn".
type AdminCommand struct {
	StudentID int    `json:"student_id"`
	Action    string `json:"action"`
	Payload   string `json:"payload,omitempty"`
}

const (
	CommandTerminate = "terminate"
	CommandWarn      = "warn"
)

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventJoined        Event = "joined"
	EventMonitorUpdate Event = "monitor-update"
	EventMonitorAlert  Event = "monitor-alert"
	EventRemoteCommand Event = "remote-command"
	EventError         Event = "error"
	EventPong          Event = "pong"
)

// Message is the outbound envelope for every server → client event.
type Message struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// RemoteCommand is what the student client receives from an AdminCommand.
type RemoteCommand struct {
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

// ErrorData is the payload of an EventError message.
type ErrorData struct {
	Error string `json:"error"`
}
