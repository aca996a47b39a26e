package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sentra-edu/proctor-backend/internal/model"
)

// ErrDuplicateSubmission is returned when a second submission arrives for
// the same (exam, student) pair.
var ErrDuplicateSubmission = errors.New("submission already exists for this exam and student")

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts a scored submission. The unique (exam_id, student_id)
// index enforces at most one per pair; a conflict surfaces as
// ErrDuplicateSubmission.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return err
	}
	behavioral, err := json.Marshal(s.Behavioral)
	if err != nil {
		return err
	}
	plagiarism, err := json.Marshal(s.Plagiarism)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, exam_id, student_id, answers, score, max_score,
		                          time_taken_seconds, warnings, submission_reason,
		                          behavioral, plagiarism, verdict, is_disqualified, is_locked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING submitted_at`,
		s.ID, s.ExamID, s.StudentID, answers, s.Score, s.MaxScore,
		s.TimeTakenSeconds, s.Warnings, s.SubmissionReason,
		behavioral, plagiarism, s.Verdict, s.IsDisqualified, s.IsLocked,
	).Scan(&s.SubmittedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSubmission
	}
	return err
}

// GetByPair retrieves the submission for one (exam, student) pair.
func (r *SubmissionRepository) GetByPair(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectSubmission+
		` WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
}

// GetByID retrieves a submission by primary key.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectSubmission+` WHERE id = $1`, id))
}

// ListByExam returns an exam's submissions, most suspicious first.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx, selectSubmission+
		` WHERE exam_id = $1
		  ORDER BY CASE verdict WHEN 'cheating' THEN 0 WHEN 'suspicious' THEN 1 ELSE 2 END,
		           submitted_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		s, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *s)
	}
	return submissions, rows.Err()
}

// ListPeerAnswers returns every other student's answers for an exam, the
// input the plagiarism comparison runs against.
func (r *SubmissionRepository) ListPeerAnswers(ctx context.Context, examID uuid.UUID, excludeStudentID int) ([]model.PeerSubmission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, answers FROM submissions
		 WHERE exam_id = $1 AND student_id <> $2`, examID, excludeStudentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []model.PeerSubmission
	for rows.Next() {
		var p model.PeerSubmission
		var raw []byte
		if err := rows.Scan(&p.StudentID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &p.Answers); err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

// UpdateIntegrity rewrites the machine-derived integrity fields after an
// asynchronous rescore. Locked submissions are left untouched.
func (r *SubmissionRepository) UpdateIntegrity(ctx context.Context, id uuid.UUID, plagiarism model.PlagiarismScore, verdict model.Verdict) error {
	raw, err := json.Marshal(plagiarism)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE submissions SET plagiarism = $2, verdict = $3
		 WHERE id = $1 AND is_locked = FALSE`, id, raw, verdict)
	return err
}

// UpdateReview applies an admin review. Only the provided fields change.
func (r *SubmissionRepository) UpdateReview(ctx context.Context, id uuid.UUID, req *model.ReviewSubmissionRequest) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions SET
		   verdict         = COALESCE($2, verdict),
		   admin_remarks   = COALESCE($3, admin_remarks),
		   is_disqualified = COALESCE($4, is_disqualified),
		   is_locked       = COALESCE($5, is_locked)
		 WHERE id = $1`,
		id, req.Verdict, req.AdminRemarks, req.IsDisqualified, req.IsLocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectSubmission = `
	SELECT id, exam_id, student_id, answers, score, max_score, time_taken_seconds,
	       warnings, submission_reason, behavioral, plagiarism, verdict,
	       admin_remarks, is_disqualified, is_locked, submitted_at
	FROM submissions`

func (r *SubmissionRepository) scanOne(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	var answers, behavioral, plagiarism []byte
	var remarks *string

	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &answers, &s.Score, &s.MaxScore,
		&s.TimeTakenSeconds, &s.Warnings, &s.SubmissionReason, &behavioral, &plagiarism,
		&s.Verdict, &remarks, &s.IsDisqualified, &s.IsLocked, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(behavioral, &s.Behavioral); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plagiarism, &s.Plagiarism); err != nil {
		return nil, err
	}
	if remarks != nil {
		s.AdminRemarks = *remarks
	}
	return s, nil
}
