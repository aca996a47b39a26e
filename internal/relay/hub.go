// Package relay is the real-time telemetry fan-out between exam clients
// and monitoring admins. It maintains two room namespaces — one monitor
// room per exam and one command room per student — over plain WebSocket
// connections. Delivery is at-most-once: an absent or slow receiver means
// the message is dropped, never queued.
package relay

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MonitorRoom names the room holding all admin viewers of an exam.
func MonitorRoom(examID string) string {
	return "monitor:" + examID
}

// StudentRoom names the room holding the single student connection
// eligible for remote commands.
func StudentRoom(studentID int) string {
	return "student:" + strconv.Itoa(studentID)
}

// Hub is a concurrency-safe room registry. Membership is the only shared
// mutable state; every message relay is an independent fan-out under a
// read lock.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	// lastSeen tracks the most recent pulse per student for the monitor
	// snapshot; staleness (>15s) is judged by the admin client.
	lastSeen map[int]time.Time
	log      zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Conn]struct{}),
		lastSeen: make(map[int]time.Time),
		log:      log.With().Str("component", "relay_hub").Logger(),
	}
}

// Join subscribes a connection to a room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes a connection from a single room.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, c)
}

// Drop removes a connection from every room it joined. Called once on
// disconnect.
func (h *Hub) Drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.removeLocked(room, c)
	}
}

func (h *Hub) removeLocked(room string, c *Conn) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast fans a message out to every member of a room and reports how
// many accepted it. An empty room is not an error: commands to offline
// students are dropped silently by contract.
func (h *Hub) Broadcast(room string, msg Message) int {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.Queue(msg) {
			delivered++
		}
	}
	return delivered
}

// RelayPulse forwards a student pulse to the exam's monitor room
// unmodified and records the student's liveness.
func (h *Hub) RelayPulse(p Pulse) int {
	h.Touch(p.StudentID)
	return h.Broadcast(MonitorRoom(p.ExamID), Message{Event: EventMonitorUpdate, Data: p})
}

// RelayViolation forwards a violation alert to the exam's monitor room
// immediately, independent of the pulse cadence.
func (h *Hub) RelayViolation(ev ViolationEvent) int {
	return h.Broadcast(MonitorRoom(ev.ExamID), Message{Event: EventMonitorAlert, Data: ev})
}

// RelayCommand routes an admin command to the target student's room. A
// missing or dead connection drops the command; the admin UI infers
// "possibly offline" from pulse staleness instead.
func (h *Hub) RelayCommand(cmd AdminCommand) int {
	n := h.Broadcast(StudentRoom(cmd.StudentID), Message{
		Event: EventRemoteCommand,
		Data:  RemoteCommand{Action: cmd.Action, Payload: cmd.Payload},
	})
	if n == 0 {
		h.log.Debug().
			Int("student_id", cmd.StudentID).
			Str("action", cmd.Action).
			Msg("Command dropped, student not connected")
	}
	return n
}

// Touch records that a student was just heard from.
func (h *Hub) Touch(studentID int) {
	h.mu.Lock()
	h.lastSeen[studentID] = time.Now()
	h.mu.Unlock()
}

// LastSeen reports when a student last pulsed. The zero time means never.
func (h *Hub) LastSeen(studentID int) time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSeen[studentID]
}

// RoomSize reports current membership, used by monitor snapshots.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
