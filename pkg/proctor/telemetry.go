package proctor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultPulseInterval = 3 * time.Second

// RemoteCommand is a proctor instruction pushed over the telemetry link.
type RemoteCommand struct {
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

// TelemetryConfig describes the backend connection.
type TelemetryConfig struct {
	// URL is the websocket endpoint, ws:// or wss://.
	URL   string
	Token string

	ExamID      string
	StudentID   int
	StudentName string

	// PulseInterval overrides the 3s default.
	PulseInterval time.Duration
}

// Telemetry streams pulses and violations to the monitoring backend and
// surfaces remote proctor commands. All writes are serialized; gorilla
// connections allow one concurrent writer.
type Telemetry struct {
	cfg  TelemetryConfig
	conn *websocket.Conn

	writeMu  sync.Mutex
	commands chan RemoteCommand
	done     chan struct{}
	once     sync.Once
}

type outbound struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinExamData struct {
	ExamID    string `json:"exam_id"`
	StudentID int    `json:"student_id"`
}

type pulseData struct {
	ExamID     string `json:"exam_id"`
	StudentID  int    `json:"student_id"`
	Name       string `json:"name"`
	Webcam     string `json:"webcam,omitempty"`
	Screen     string `json:"screen,omitempty"`
	Violations int    `json:"violations"`
}

type violationData struct {
	ExamID     string        `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Evidence   *evidenceData `json:"evidence,omitempty"`
	Timestamp  int64         `json:"timestamp"`
	Violations int           `json:"violations"`
}

type evidenceData struct {
	Webcam string `json:"webcam,omitempty"`
	Screen string `json:"screen,omitempty"`
}

// DialTelemetry connects, authenticates via bearer header, and joins the
// exam room. The read loop starts immediately.
func DialTelemetry(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if cfg.PulseInterval <= 0 {
		cfg.PulseInterval = defaultPulseInterval
	}

	t := &Telemetry{
		cfg:      cfg,
		conn:     conn,
		commands: make(chan RemoteCommand, 8),
		done:     make(chan struct{}),
	}

	if err := t.send("join-exam", joinExamData{ExamID: cfg.ExamID, StudentID: cfg.StudentID}); err != nil {
		conn.Close()
		return nil, err
	}

	go t.readLoop()
	return t, nil
}

// Commands delivers remote proctor commands. The channel closes when the
// connection drops.
func (t *Telemetry) Commands() <-chan RemoteCommand {
	return t.commands
}

// SendViolation pushes one violation with base64 evidence frames.
func (t *Telemetry) SendViolation(rec ViolationRecord, warnings int) error {
	data := violationData{
		ExamID:     t.cfg.ExamID,
		StudentID:  t.cfg.StudentID,
		Name:       t.cfg.StudentName,
		Type:       string(rec.Type),
		Timestamp:  rec.Timestamp.UnixMilli(),
		Violations: warnings,
	}
	if ev := encodeEvidence(rec.Evidence); ev != nil {
		data.Evidence = ev
	}
	return t.send("violation", data)
}

// RunPulse sends a state snapshot every PulseInterval until the session
// leaves the active state or the connection closes. Blocking; run it on
// its own goroutine.
func (t *Telemetry) RunPulse(s *Session) {
	ticker := time.NewTicker(t.cfg.PulseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if s.State() != StateActive {
				return
			}
			ev := s.Snapshot()
			data := pulseData{
				ExamID:     t.cfg.ExamID,
				StudentID:  t.cfg.StudentID,
				Name:       t.cfg.StudentName,
				Violations: s.Warnings(),
			}
			if len(ev.Webcam) > 0 {
				data.Webcam = base64.StdEncoding.EncodeToString(ev.Webcam)
			}
			if len(ev.Screen) > 0 {
				data.Screen = base64.StdEncoding.EncodeToString(ev.Screen)
			}
			if err := t.send("student-pulse", data); err != nil {
				return
			}
		}
	}
}

// Close tears down the connection.
func (t *Telemetry) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.conn.Close()
}

func (t *Telemetry) send(action string, data interface{}) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(outbound{Action: action, Data: data})
}

func (t *Telemetry) readLoop() {
	defer close(t.commands)
	for {
		var msg inbound
		if err := t.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Event != "remote-command" {
			continue
		}
		var cmd RemoteCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			continue
		}
		select {
		case t.commands <- cmd:
		default:
		}
	}
}

func encodeEvidence(ev Evidence) *evidenceData {
	if len(ev.Webcam) == 0 && len(ev.Screen) == 0 {
		return nil
	}
	out := &evidenceData{}
	if len(ev.Webcam) > 0 {
		out.Webcam = base64.StdEncoding.EncodeToString(ev.Webcam)
	}
	if len(ev.Screen) > 0 {
		out.Screen = base64.StdEncoding.EncodeToString(ev.Screen)
	}
	return out
}
