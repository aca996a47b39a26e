package proctor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type telemetryServer struct {
	srv      *httptest.Server
	inbound  chan outbound
	mu       sync.Mutex
	conn     *websocket.Conn
	lastAuth string
}

func newTelemetryServer(t *testing.T) *telemetryServer {
	t.Helper()
	ts := &telemetryServer{inbound: make(chan outbound, 32)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		ts.mu.Lock()
		ts.conn = ws
		ts.lastAuth = r.Header.Get("Authorization")
		ts.mu.Unlock()

		for {
			var msg outbound
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			ts.inbound <- msg
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *telemetryServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *telemetryServer) push(t *testing.T, event string, data interface{}) {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotNil(t, ts.conn)
	require.NoError(t, ts.conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func (ts *telemetryServer) next(t *testing.T) outbound {
	t.Helper()
	select {
	case msg := <-ts.inbound:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message from client")
		return outbound{}
	}
}

func dialTestTelemetry(t *testing.T, ts *telemetryServer, cfg TelemetryConfig) *Telemetry {
	t.Helper()
	cfg.URL = ts.url()
	tel, err := DialTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { tel.Close() })
	return tel
}

func TestDialSendsJoinWithBearerToken(t *testing.T) {
	ts := newTelemetryServer(t)
	dialTestTelemetry(t, ts, TelemetryConfig{
		Token:     "jwt-token",
		ExamID:    "exam-1",
		StudentID: 7,
	})

	msg := ts.next(t)
	assert.Equal(t, "join-exam", msg.Action)

	var join joinExamData
	remarshalJSON(t, msg.Data, &join)
	assert.Equal(t, "exam-1", join.ExamID)
	assert.Equal(t, 7, join.StudentID)

	ts.mu.Lock()
	auth := ts.lastAuth
	ts.mu.Unlock()
	assert.Equal(t, "Bearer jwt-token", auth)
}

func TestSendViolationCarriesBase64Evidence(t *testing.T) {
	ts := newTelemetryServer(t)
	tel := dialTestTelemetry(t, ts, TelemetryConfig{ExamID: "exam-1", StudentID: 7, StudentName: "Ada"})
	ts.next(t) // join-exam

	rec := ViolationRecord{
		Type:      MultipleFaces,
		Timestamp: time.Now(),
		Evidence:  Evidence{Webcam: Frame("webcam-frame")},
	}
	require.NoError(t, tel.SendViolation(rec, 3))

	msg := ts.next(t)
	assert.Equal(t, "violation", msg.Action)

	var got violationData
	remarshalJSON(t, msg.Data, &got)
	assert.Equal(t, "multiple_faces", got.Type)
	assert.Equal(t, 3, got.Violations)
	assert.Equal(t, rec.Timestamp.UnixMilli(), got.Timestamp)
	require.NotNil(t, got.Evidence)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("webcam-frame")), got.Evidence.Webcam)
	assert.Empty(t, got.Evidence.Screen)
}

func TestSendViolationOmitsEmptyEvidence(t *testing.T) {
	ts := newTelemetryServer(t)
	tel := dialTestTelemetry(t, ts, TelemetryConfig{ExamID: "exam-1"})
	ts.next(t)

	require.NoError(t, tel.SendViolation(ViolationRecord{Type: TabSwitch, Timestamp: time.Now()}, 1))

	var got violationData
	remarshalJSON(t, ts.next(t).Data, &got)
	assert.Nil(t, got.Evidence)
}

func TestRunPulseStreamsWhileActive(t *testing.T) {
	ts := newTelemetryServer(t)
	tel := dialTestTelemetry(t, ts, TelemetryConfig{
		ExamID:        "exam-1",
		StudentID:     7,
		StudentName:   "Ada",
		PulseInterval: 20 * time.Millisecond,
	})
	ts.next(t)

	s := NewSession(SessionConfig{
		ExamID:    "exam-1",
		StudentID: 7,
		Capturer:  NewCachedCapturer(&fakeCapturer{webcam: Frame("cam")}),
	}, nil)
	require.NoError(t, s.Start(newFakeEnv()))
	s.RecordViolation(TabSwitch, Evidence{})

	go tel.RunPulse(s)

	msg := ts.next(t)
	assert.Equal(t, "student-pulse", msg.Action)

	var pulse pulseData
	remarshalJSON(t, msg.Data, &pulse)
	assert.Equal(t, "exam-1", pulse.ExamID)
	assert.Equal(t, "Ada", pulse.Name)
	assert.Equal(t, 1, pulse.Violations)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("cam")), pulse.Webcam)

	// Leaving the active state stops the pulse loop.
	require.NoError(t, s.Submit(ReasonManual))
	drainUntilQuiet(t, ts)
}

func TestRemoteCommandsSurfaceOnChannel(t *testing.T) {
	ts := newTelemetryServer(t)
	tel := dialTestTelemetry(t, ts, TelemetryConfig{ExamID: "exam-1", StudentID: 7})
	ts.next(t)

	ts.push(t, "remote-command", RemoteCommand{Action: "warn", Payload: "stay in fullscreen"})
	ts.push(t, "pong", nil) // unrelated events are skipped
	ts.push(t, "remote-command", RemoteCommand{Action: "terminate"})

	select {
	case cmd := <-tel.Commands():
		assert.Equal(t, "warn", cmd.Action)
		assert.Equal(t, "stay in fullscreen", cmd.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("warn command never surfaced")
	}

	select {
	case cmd := <-tel.Commands():
		assert.Equal(t, "terminate", cmd.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("terminate command never surfaced")
	}
}

func TestCommandsChannelClosesOnDisconnect(t *testing.T) {
	ts := newTelemetryServer(t)
	tel := dialTestTelemetry(t, ts, TelemetryConfig{ExamID: "exam-1"})
	ts.next(t)

	ts.mu.Lock()
	ts.conn.Close()
	ts.mu.Unlock()

	select {
	case _, open := <-tel.Commands():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("commands channel never closed")
	}
}

// drainUntilQuiet asserts the pulse stream goes silent shortly after the
// session ends. A few in-flight pulses are tolerated.
func drainUntilQuiet(t *testing.T, ts *telemetryServer) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case <-ts.inbound:
		case <-time.After(200 * time.Millisecond):
			return
		case <-deadline:
			t.Fatal("pulse stream never stopped")
		}
	}
}

func remarshalJSON(t *testing.T, data interface{}, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}
