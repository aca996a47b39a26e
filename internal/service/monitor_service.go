package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/relay"
	"github.com/sentra-edu/proctor-backend/internal/repository"
)

// MonitorEntry is one student row in the proctor's live roster.
type MonitorEntry struct {
	StudentID int        `json:"student_id"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"started_at"`
	Warnings  int        `json:"warnings"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Online    bool       `json:"online"`
}

// MonitorService assembles the monitor snapshot and mirrors monitor
// traffic onto a Redis channel for consumers without a websocket.
type MonitorService struct {
	cfg        *config.Config
	rdb        *redis.Client
	hub        *relay.Hub
	sessions   *repository.SessionRepository
	students   *repository.StudentRepository
	violations *ViolationService
	log        zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(cfg *config.Config, rdb *redis.Client, hub *relay.Hub, sessions *repository.SessionRepository, students *repository.StudentRepository, violations *ViolationService) *MonitorService {
	return &MonitorService{
		cfg:        cfg,
		rdb:        rdb,
		hub:        hub,
		sessions:   sessions,
		students:   students,
		violations: violations,
		log:        log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot builds the current roster for an exam: every active session
// with its persisted warning count and pulse liveness. New monitors call
// this once on join instead of waiting a pulse interval for state.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) ([]MonitorEntry, error) {
	sessions, err := s.sessions.ListActiveByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.StudentID)
	}
	names, err := s.students.GetNamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]MonitorEntry, 0, len(sessions))
	for _, sess := range sessions {
		entry := MonitorEntry{
			StudentID: sess.StudentID,
			Name:      names[sess.StudentID],
			StartedAt: sess.StartedAt,
			// Live counter; persisted rows lag behind the flush interval
			Warnings: s.violations.WarningCount(ctx, examID, sess.StudentID),
		}
		if last := s.hub.LastSeen(sess.StudentID); !last.IsZero() {
			entry.LastSeen = &last
			entry.Online = now.Sub(last) < s.cfg.OfflineThreshold
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Publish mirrors a monitor event onto the exam's Redis channel so
// non-websocket consumers (the SSE feed, audit tooling) see the same
// stream the socket monitors do.
func (s *MonitorService) Publish(ctx context.Context, examID string, event relay.Message) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal monitor event")
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("failed to publish monitor event")
	}
}

// Subscribe opens the Redis mirror channel for one exam.
func (s *MonitorService) Subscribe(ctx context.Context, examID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID))
}
