package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sentra-edu/proctor-backend/internal/model"
)

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// StartOrResume records the server-side start of an attempt. Rejoining an
// existing session keeps the original started_at, so reconnects never
// reset the clock.
func (r *SessionRepository) StartOrResume(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, exam_id, student_id, status, started_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (exam_id, student_id) DO UPDATE SET exam_id = EXCLUDED.exam_id
		 RETURNING id, exam_id, student_id, status, started_at, ended_at`,
		uuid.New(), examID, studentID, model.SessionActive,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves the session for one (exam, student) pair.
func (r *SessionRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, started_at, ended_at
		 FROM exam_sessions WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListActiveByExam returns every in-progress session for an exam, oldest
// first, for the monitor roster.
func (r *SessionRepository) ListActiveByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, status, started_at, ended_at
		 FROM exam_sessions WHERE exam_id = $1 AND status = $2
		 ORDER BY started_at ASC`, examID, model.SessionActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// End moves a session into a terminal status. Idempotent: an already
// ended session keeps its first terminal status and timestamp.
func (r *SessionRepository) End(ctx context.Context, examID uuid.UUID, studentID int, status model.SessionStatus, endedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET status = $3, ended_at = $4
		 WHERE exam_id = $1 AND student_id = $2 AND status = $5`,
		examID, studentID, status, endedAt, model.SessionActive)
	return err
}
