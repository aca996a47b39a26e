package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/repository"
)

// ErrUnknownViolationType is returned for violation types outside the
// recognized vocabulary.
var ErrUnknownViolationType = errors.New("unknown violation type")

const warningsKeyTTL = 12 * time.Hour

// ViolationService ingests violations from the relay and the HTTP
// fallback. Rows are queued in Redis for the persistence worker instead
// of written inline, so a detector storm cannot saturate the pool.
type ViolationService struct {
	rdb        *redis.Client
	evidence   *EvidenceService
	violations *repository.ViolationRepository
	log        zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(rdb *redis.Client, evidence *EvidenceService, violations *repository.ViolationRepository) *ViolationService {
	return &ViolationService{
		rdb:        rdb,
		evidence:   evidence,
		violations: violations,
		log:        log.With().Str("component", "violation_service").Logger(),
	}
}

// Ingest validates, stores evidence, queues the violation for
// persistence and bumps the live warning counter. Returns the queued
// violation with its evidence paths resolved.
func (s *ViolationService) Ingest(ctx context.Context, examID uuid.UUID, studentID int, req *model.IngestViolationRequest) (*model.Violation, error) {
	vType := model.ViolationType(req.Type)
	if !vType.Known() {
		return nil, ErrUnknownViolationType
	}

	severity := model.Severity(req.Severity)
	if severity == "" {
		severity = model.SeverityFor(vType)
	}

	v := &model.Violation{
		ID:             uuid.New(),
		ExamID:         examID,
		StudentID:      studentID,
		Type:           vType,
		Severity:       severity,
		WebcamEvidence: s.evidence.StoreQuiet(examID.String(), studentID, "webcam", req.WebcamEvidence),
		ScreenEvidence: s.evidence.StoreQuiet(examID.String(), studentID, "screen", req.ScreenEvidence),
		OccurredAt:     time.UnixMilli(req.Timestamp),
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return nil, fmt.Errorf("queue violation: %w", err)
	}

	s.bumpWarnings(ctx, examID, studentID)
	return v, nil
}

// WarningCount returns the live warning counter for a student, falling
// back to the persisted row count when the counter expired.
func (s *ViolationService) WarningCount(ctx context.Context, examID uuid.UUID, studentID int) int {
	key := config.CacheKey.StudentWarningsKey(examID.String(), studentID)
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if n, perr := strconv.Atoi(raw); perr == nil {
			return n
		}
	}

	violations, err := s.violations.ListByStudent(ctx, examID, studentID)
	if err != nil {
		return 0
	}
	return len(violations)
}

// ListByStudent returns a student's persisted violation trail.
func (s *ViolationService) ListByStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Violation, error) {
	return s.violations.ListByStudent(ctx, examID, studentID)
}

func (s *ViolationService) bumpWarnings(ctx context.Context, examID uuid.UUID, studentID int) {
	key := config.CacheKey.StudentWarningsKey(examID.String(), studentID)
	if err := s.rdb.Incr(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("failed to bump warning counter")
		return
	}
	s.rdb.Expire(ctx, key, warningsKeyTTL)
}
