package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sentra-edu/proctor-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam returns an exam's questions in presentation order, grading
// fields included.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, options,
		        correct_answer, language, test_cases, order_num
		 FROM questions WHERE exam_id = $1 ORDER BY order_num ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType,
			&q.Options, &q.CorrectAnswer, &q.Language, &q.TestCases, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForExam swaps an exam's full question set in one transaction.
// Question authoring is whole-set: partial edits reorder too easily.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	if len(questions) > 0 {
		rows := make([][]interface{}, 0, len(questions))
		for i := range questions {
			q := &questions[i]
			if q.ID == uuid.Nil {
				q.ID = uuid.New()
			}
			q.ExamID = examID
			rows = append(rows, []interface{}{
				q.ID, q.ExamID, q.QuestionText, q.QuestionType,
				q.Options, q.CorrectAnswer, q.Language, q.TestCases, q.OrderNum,
			})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"questions"},
			[]string{"id", "exam_id", "question_text", "question_type", "options",
				"correct_answer", "language", "test_cases", "order_num"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
