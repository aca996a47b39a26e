package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer upgrades every request and joins the connection to the
// room named in the ?room= query parameter.
func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		c := NewConn(ws)
		c.SetupPongHandler()
		go c.WritePump()
		hub.Join(r.URL.Query().Get("room"), c)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestRelayPulseFansOutToAllMonitors(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub)

	monA := dial(t, srv, MonitorRoom("exam-1"))
	monB := dial(t, srv, MonitorRoom("exam-1"))
	other := dial(t, srv, MonitorRoom("exam-2"))

	waitForMembers(t, hub, MonitorRoom("exam-1"), 2)
	waitForMembers(t, hub, MonitorRoom("exam-2"), 1)

	pulse := Pulse{ExamID: "exam-1", StudentID: 7, Name: "Ada", Violations: 2}
	delivered := hub.RelayPulse(pulse)
	assert.Equal(t, 2, delivered)

	for _, ws := range []*websocket.Conn{monA, monB} {
		msg := readMessage(t, ws)
		assert.Equal(t, EventMonitorUpdate, msg.Event)

		var got Pulse
		remarshal(t, msg.Data, &got)
		assert.Equal(t, pulse, got, "pulse must be forwarded unmodified")
	}

	// The other exam's monitor must see nothing.
	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var msg Message
	assert.Error(t, other.ReadJSON(&msg))
}

func TestRelayViolationUsesAlertChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub)

	mon := dial(t, srv, MonitorRoom("exam-1"))
	waitForMembers(t, hub, MonitorRoom("exam-1"), 1)

	hub.RelayViolation(ViolationEvent{
		ExamID:    "exam-1",
		StudentID: 7,
		Type:      "tab_switch",
		Timestamp: time.Now().Unix(),
	})

	msg := readMessage(t, mon)
	assert.Equal(t, EventMonitorAlert, msg.Event)
}

// An admin terminate reaches a connected student exactly once; sending to
// a studentless room is a silent drop, not an error.
func TestRelayCommandRoutingAndSilentDrop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := newTestServer(t, hub)

	student := dial(t, srv, StudentRoom(7))
	waitForMembers(t, hub, StudentRoom(7), 1)

	delivered := hub.RelayCommand(AdminCommand{StudentID: 7, Action: CommandTerminate})
	assert.Equal(t, 1, delivered)

	msg := readMessage(t, student)
	assert.Equal(t, EventRemoteCommand, msg.Event)

	var cmd RemoteCommand
	remarshal(t, msg.Data, &cmd)
	assert.Equal(t, CommandTerminate, cmd.Action)

	// No further commands queued.
	student.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var extra Message
	assert.Error(t, student.ReadJSON(&extra))

	// Offline student: zero deliveries, no error.
	assert.Equal(t, 0, hub.RelayCommand(AdminCommand{StudentID: 999, Action: CommandTerminate}))
}

func TestDropRemovesConnEverywhere(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewConn(nil)

	hub.Join(MonitorRoom("exam-1"), c)
	hub.Join(StudentRoom(3), c)
	assert.Equal(t, 1, hub.RoomSize(MonitorRoom("exam-1")))

	hub.Drop(c)
	assert.Equal(t, 0, hub.RoomSize(MonitorRoom("exam-1")))
	assert.Equal(t, 0, hub.RoomSize(StudentRoom(3)))
}

func TestLeaveRemovesConnFromSingleRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewConn(nil)

	hub.Join(MonitorRoom("exam-1"), c)
	hub.Join(MonitorRoom("exam-2"), c)

	hub.Leave(MonitorRoom("exam-1"), c)
	assert.Equal(t, 0, hub.RoomSize(MonitorRoom("exam-1")))
	assert.Equal(t, 1, hub.RoomSize(MonitorRoom("exam-2")))
}

func TestQueueDropsWhenBufferFull(t *testing.T) {
	// No WritePump draining: the buffer fills, then messages drop.
	c := NewConn(nil)
	msg := Message{Event: EventMonitorUpdate}

	accepted := 0
	for i := 0; i < sendBuffer+10; i++ {
		if c.Queue(msg) {
			accepted++
		}
	}
	assert.Equal(t, sendBuffer, accepted)
}

func TestTouchRecordsLiveness(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.True(t, hub.LastSeen(7).IsZero())

	hub.RelayPulse(Pulse{ExamID: "exam-1", StudentID: 7})
	assert.WithinDuration(t, time.Now(), hub.LastSeen(7), time.Second)
}

func waitForMembers(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomSize(room) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members", room, want)
}

func remarshal(t *testing.T, src interface{}, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(src)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}
