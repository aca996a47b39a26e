package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentra-edu/proctor-backend/internal/config"
)

// ErrEvidenceTooLarge is returned when a decoded evidence frame exceeds
// the configured size cap.
var ErrEvidenceTooLarge = errors.New("evidence frame exceeds size limit")

// EvidenceService persists violation evidence frames to disk. Files land
// under EVIDENCE_DIR/<exam>/<student>/ and are served as static content
// behind admin auth.
type EvidenceService struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger
}

// NewEvidenceService creates a new EvidenceService.
func NewEvidenceService(cfg *config.Config) *EvidenceService {
	return &EvidenceService{
		dir:      cfg.EvidenceDir,
		maxBytes: cfg.MaxEvidenceBytes,
		log:      log.With().Str("component", "evidence").Logger(),
	}
}

// Store decodes a base64 frame and writes it to disk, returning the path
// relative to the evidence root. Empty input stores nothing and returns
// nil, matching violations captured without a frame.
func (s *EvidenceService) Store(examID string, studentID int, kind, encoded string) (*string, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(stripDataURL(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrEvidenceTooLarge
	}

	rel := filepath.Join(examID, fmt.Sprintf("%d", studentID),
		fmt.Sprintf("%s_%s.jpg", uuid.New().String(), kind))
	full := filepath.Join(s.dir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write evidence: %w", err)
	}
	return &rel, nil
}

// StoreQuiet is Store with failures downgraded to a log line. Violation
// persistence must never fail because a frame could not be written.
func (s *EvidenceService) StoreQuiet(examID string, studentID int, kind, encoded string) *string {
	path, err := s.Store(examID, studentID, kind, encoded)
	if err != nil {
		s.log.Warn().Err(err).
			Str("exam_id", examID).
			Int("student_id", studentID).
			Str("kind", kind).
			Msg("failed to store evidence frame")
		return nil
	}
	return path
}

// Root returns the evidence directory for static serving.
func (s *EvidenceService) Root() string {
	return s.dir
}

// stripDataURL removes a "data:image/...;base64," prefix when present;
// browser clients send frames as data URLs.
func stripDataURL(encoded string) string {
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		return encoded[idx+1:]
	}
	return encoded
}
