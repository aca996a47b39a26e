package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sentra-edu/proctor-backend/internal/model"
)

// ViolationRepository handles violation data access. The violation trail
// is append-only; nothing here updates or deletes rows.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Create inserts a single violation.
func (r *ViolationRepository) Create(ctx context.Context, v *model.Violation) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO violations (id, exam_id, student_id, type, severity,
		                         webcam_evidence, screen_evidence, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		v.ID, v.ExamID, v.StudentID, v.Type, v.Severity,
		v.WebcamEvidence, v.ScreenEvidence, v.OccurredAt,
	).Scan(&v.CreatedAt)
}

// BulkInsert persists a batch of violations with COPY. Used by the
// persistence worker to flush its queue.
func (r *ViolationRepository) BulkInsert(ctx context.Context, violations []model.Violation) (int64, error) {
	if len(violations) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, 0, len(violations))
	for i := range violations {
		v := &violations[i]
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		rows = append(rows, []interface{}{
			v.ID, v.ExamID, v.StudentID, v.Type, v.Severity,
			v.WebcamEvidence, v.ScreenEvidence, v.OccurredAt,
		})
	}

	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"violations"},
		[]string{"id", "exam_id", "student_id", "type", "severity",
			"webcam_evidence", "screen_evidence", "occurred_at"},
		pgx.CopyFromRows(rows))
}

// ListByStudent returns one student's violations for an exam in
// chronological order.
func (r *ViolationRepository) ListByStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, type, severity,
		        webcam_evidence, screen_evidence, occurred_at, created_at
		 FROM violations WHERE exam_id = $1 AND student_id = $2
		 ORDER BY occurred_at ASC`, examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanViolations(rows)
}

func scanViolations(rows pgx.Rows) ([]model.Violation, error) {
	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.ExamID, &v.StudentID, &v.Type, &v.Severity,
			&v.WebcamEvidence, &v.ScreenEvidence, &v.OccurredAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
