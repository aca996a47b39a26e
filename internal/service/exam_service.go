package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/repository"
)

// ErrExamNotAvailable is returned when a student touches an exam outside
// its published window.
var ErrExamNotAvailable = errors.New("exam is not available")

const answerKeyTTL = 10 * time.Minute

// ExamService handles exam lifecycle, question delivery and the
// Redis-backed answer autosave.
type ExamService struct {
	cfg       *config.Config
	rdb       *redis.Client
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	sessions  *repository.SessionRepository
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(cfg *config.Config, rdb *redis.Client, exams *repository.ExamRepository, questions *repository.QuestionRepository, sessions *repository.SessionRepository) *ExamService {
	return &ExamService{
		cfg:       cfg,
		rdb:       rdb,
		exams:     exams,
		questions: questions,
		sessions:  sessions,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// Create registers a new draft exam.
func (s *ExamService) Create(ctx context.Context, authorID int, req *model.CreateExamRequest) (*model.Exam, error) {
	maxWarnings := req.MaxWarnings
	if maxWarnings == 0 {
		maxWarnings = s.cfg.MaxWarnings
	}

	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           req.Title,
		AuthorID:        authorID,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		DurationMinutes: req.DurationMinutes,
		MaxWarnings:     maxWarnings,
		Status:          model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// List returns exams for the admin dashboard.
func (s *ExamService) List(ctx context.Context, authorID, limit, offset int) ([]model.Exam, int, error) {
	return s.exams.ListPaginated(ctx, authorID, limit, offset)
}

// Get retrieves one exam.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// SetStatus transitions an exam and drops its cached answer key, since a
// status edit usually follows a content edit.
func (s *ExamService) SetStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	if err := s.exams.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.invalidateAnswerKey(ctx, id)
	return nil
}

// ReplaceQuestions swaps an exam's question set and invalidates the
// cached answer key.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return err
	}
	if err := s.questions.ReplaceForExam(ctx, examID, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	s.invalidateAnswerKey(ctx, examID)
	return nil
}

// Questions returns an exam's full question set, grading fields included.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions.ListByExam(ctx, examID)
}

// QuestionsForStudent returns an available exam's questions stripped of
// grading data.
func (s *ExamService) QuestionsForStudent(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.QuestionForStudent, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if !s.Available(exam, time.Now()) {
		return nil, nil, ErrExamNotAvailable
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}

	stripped := make([]model.QuestionForStudent, 0, len(questions))
	for i := range questions {
		stripped = append(stripped, questions[i].ForStudent())
	}
	return exam, stripped, nil
}

// Available reports whether students may enter the exam at the given time.
func (s *ExamService) Available(exam *model.Exam, now time.Time) bool {
	if exam.Status != model.ExamStatusPublished {
		return false
	}
	if exam.ScheduledStart != nil && now.Before(*exam.ScheduledStart) {
		return false
	}
	if exam.ScheduledEnd != nil && now.After(*exam.ScheduledEnd) {
		return false
	}
	return true
}

// StartSession records the server-side attempt start. The returned
// started_at is authoritative for elapsed-time checks; it also lands in
// Redis so the submit path can clamp without a DB round trip.
func (s *ExamService) StartSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !s.Available(exam, time.Now()) {
		return nil, ErrExamNotAvailable
	}

	session, err := s.sessions.StartOrResume(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	ttl := time.Duration(exam.DurationMinutes)*time.Minute + time.Hour
	key := config.CacheKey.StudentExamStartKey(examID.String(), studentID)
	if err := s.rdb.Set(ctx, key, session.StartedAt.Format(time.RFC3339), ttl).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("failed to cache session start")
	}
	return session, nil
}

// SessionStart returns the authoritative attempt start time, preferring
// the Redis cache and falling back to the database.
func (s *ExamService) SessionStart(ctx context.Context, examID uuid.UUID, studentID int) (time.Time, error) {
	key := config.CacheKey.StudentExamStartKey(examID.String(), studentID)
	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			return t, nil
		}
	}

	session, err := s.sessions.Get(ctx, examID, studentID)
	if err != nil {
		return time.Time{}, err
	}
	return session.StartedAt, nil
}

// AnswerKey returns the exam's correct answers keyed by question order
// index, cached in Redis. MaxScore counts multiple-choice questions only.
func (s *ExamService) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	cacheKey := config.CacheKey.ExamAnswerKey(examID.String())
	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var key map[string]string
		if jerr := json.Unmarshal([]byte(raw), &key); jerr == nil {
			return key, nil
		}
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	key := make(map[string]string)
	for i := range questions {
		q := &questions[i]
		if q.QuestionType == model.QuestionTypeMultipleChoice {
			key[fmt.Sprintf("%d", q.OrderNum)] = q.CorrectAnswer
		}
	}

	if raw, err := json.Marshal(key); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, answerKeyTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("failed to cache answer key")
		}
	}
	return key, nil
}

// SaveAnswers autosaves a student's in-progress answers. These survive a
// client crash and feed the force-submit path on termination.
func (s *ExamService) SaveAnswers(ctx context.Context, examID uuid.UUID, studentID int, answers map[string]string) error {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}

	ttl := time.Duration(exam.DurationMinutes)*time.Minute + time.Hour
	key := config.CacheKey.StudentAnswersKey(examID.String(), studentID)
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

// SavedAnswers returns the last autosaved answers, empty when none exist.
func (s *ExamService) SavedAnswers(ctx context.Context, examID uuid.UUID, studentID int) (map[string]string, error) {
	key := config.CacheKey.StudentAnswersKey(examID.String(), studentID)
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	answers := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return map[string]string{}, nil
	}
	return answers, nil
}

// ClearSavedAnswers drops the autosave after a successful submission.
func (s *ExamService) ClearSavedAnswers(ctx context.Context, examID uuid.UUID, studentID int) {
	key := config.CacheKey.StudentAnswersKey(examID.String(), studentID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("failed to clear autosaved answers")
	}
}

func (s *ExamService) invalidateAnswerKey(ctx context.Context, examID uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("failed to invalidate answer key cache")
	}
}
