package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/repository"
	"github.com/sentra-edu/proctor-backend/internal/sandbox"
	"github.com/sentra-edu/proctor-backend/internal/scoring"
)

// ErrAlreadySubmitted is returned for a second submission on the same
// (exam, student) pair.
var ErrAlreadySubmitted = errors.New("exam already submitted")

// SubmitOutcome is the result of a completed submission: the stored row
// plus per-question coding summaries such as "3/5 Test Cases Passed".
type SubmitOutcome struct {
	Submission    *model.Submission `json:"submission"`
	CodingResults map[string]string `json:"coding_results,omitempty"`
}

// SubmissionService grades and stores final submissions. Scoring is
// synchronous so the student gets a verdict in the submit response; the
// exam-wide plagiarism pass is re-run asynchronously as peers land.
type SubmissionService struct {
	cfg         *config.Config
	rdb         *redis.Client
	submissions *repository.SubmissionRepository
	sessions    *repository.SessionRepository
	examSvc     *ExamService
	violations  *ViolationService
	scorer      *scoring.Scorer
	sandbox     *sandbox.Client
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	cfg *config.Config,
	rdb *redis.Client,
	submissions *repository.SubmissionRepository,
	sessions *repository.SessionRepository,
	examSvc *ExamService,
	violations *ViolationService,
	sandboxClient *sandbox.Client,
) *SubmissionService {
	return &SubmissionService{
		cfg:         cfg,
		rdb:         rdb,
		submissions: submissions,
		sessions:    sessions,
		examSvc:     examSvc,
		violations:  violations,
		scorer:      scoring.NewScorer(cfg.Verdict),
		sandbox:     sandboxClient,
		log:         log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit grades and stores a final submission. Submissions are never
// silently dropped: any occurrence of the listed reasons ends in a stored
// row or an explicit error back to the client.
func (s *SubmissionService) Submit(ctx context.Context, examID uuid.UUID, studentID int, req *model.SubmitRequest) (*SubmitOutcome, error) {
	exam, err := s.examSvc.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if req.Answers == nil {
		req.Answers = map[string]string{}
	}
	if req.SubmissionReason == "" {
		req.SubmissionReason = "manual"
	}

	if existing, err := s.submissions.GetByPair(ctx, examID, studentID); err == nil && existing != nil {
		return nil, ErrAlreadySubmitted
	}

	req.TimeTakenSeconds = s.clampTimeTaken(ctx, examID, studentID, exam, req.TimeTakenSeconds)

	// The server-side violation count is the floor for warnings; a client
	// cannot lower its own count by underreporting.
	if serverCount := s.violations.WarningCount(ctx, examID, studentID); serverCount > req.Warnings {
		req.Warnings = serverCount
	}

	questions, err := s.examSvc.Questions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	peerRows, err := s.submissions.ListPeerAnswers(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load peers: %w", err)
	}
	peers := make([]scoring.PeerAnswers, 0, len(peerRows))
	for _, p := range peerRows {
		peers = append(peers, scoring.PeerAnswers{StudentID: p.StudentID, Answers: p.Answers})
	}

	result := s.scorer.Score(req, questions, peers)
	codingResults := s.gradeCoding(ctx, questions, req.Answers, &result)

	submission := &model.Submission{
		ID:               uuid.New(),
		ExamID:           examID,
		StudentID:        studentID,
		Answers:          req.Answers,
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Warnings:         req.Warnings,
		SubmissionReason: req.SubmissionReason,
		Behavioral:       result.Behavioral,
		Plagiarism:       result.Plagiarism,
		Verdict:          result.Verdict,
	}

	if err := s.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("store submission: %w", err)
	}

	s.finishSession(ctx, examID, studentID, req.SubmissionReason)
	s.enqueueRescore(ctx, examID)

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Str("reason", req.SubmissionReason).
		Str("verdict", string(submission.Verdict)).
		Int("score", submission.Score).
		Msg("submission stored")

	return &SubmitOutcome{Submission: submission, CodingResults: codingResults}, nil
}

// ForceSubmit builds a submission from the autosaved answers on behalf of
// a student, used when a proctor terminates a session and the client
// never delivers its own payload. Racing against a real submission is
// fine: the duplicate becomes a no-op.
func (s *SubmissionService) ForceSubmit(ctx context.Context, examID uuid.UUID, studentID int) error {
	answers, err := s.examSvc.SavedAnswers(ctx, examID, studentID)
	if err != nil {
		return fmt.Errorf("load autosaved answers: %w", err)
	}

	req := &model.SubmitRequest{
		Answers:          answers,
		Warnings:         s.violations.WarningCount(ctx, examID, studentID),
		SubmissionReason: "proctor_terminated",
	}

	_, err = s.Submit(ctx, examID, studentID, req)
	if errors.Is(err, ErrAlreadySubmitted) {
		return nil
	}
	return err
}

// Get retrieves one submission.
func (s *SubmissionService) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return s.submissions.GetByID(ctx, id)
}

// GetForStudent retrieves a student's own submission.
func (s *SubmissionService) GetForStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	return s.submissions.GetByPair(ctx, examID, studentID)
}

// ListByExam returns an exam's submissions for review, most suspicious
// first.
func (s *SubmissionService) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	return s.submissions.ListByExam(ctx, examID)
}

// Review applies an admin verdict override and returns the updated row.
func (s *SubmissionService) Review(ctx context.Context, id uuid.UUID, req *model.ReviewSubmissionRequest) (*model.Submission, error) {
	if err := s.submissions.UpdateReview(ctx, id, req); err != nil {
		return nil, err
	}
	return s.submissions.GetByID(ctx, id)
}

// RescoreExam recomputes plagiarism and verdicts across an exam's full
// submission set. Run by the rescore worker after each new submission so
// early submitters are compared against late peers too.
func (s *SubmissionService) RescoreExam(ctx context.Context, examID uuid.UUID) error {
	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	for i := range submissions {
		sub := &submissions[i]
		if sub.IsLocked {
			continue
		}

		peers := make([]scoring.PeerAnswers, 0, len(submissions)-1)
		for j := range submissions {
			if submissions[j].StudentID == sub.StudentID {
				continue
			}
			peers = append(peers, scoring.PeerAnswers{
				StudentID: submissions[j].StudentID,
				Answers:   submissions[j].Answers,
			})
		}

		plagiarism := scoring.PlagiarismSimilarity(sub.Answers, peers)
		verdict := s.scorer.ClassifyVerdict(plagiarism.Percentage, sub.Behavioral.OverallRisk, sub.Warnings)

		if err := s.submissions.UpdateIntegrity(ctx, sub.ID, plagiarism, verdict); err != nil {
			return fmt.Errorf("update submission %s: %w", sub.ID, err)
		}
	}
	return nil
}

// gradeCoding runs coding answers through the sandbox, folding passed
// test cases into the score. MCQ-only exams skip this entirely.
func (s *SubmissionService) gradeCoding(ctx context.Context, questions []model.Question, answers map[string]string, result *scoring.Result) map[string]string {
	var summaries map[string]string

	for i := range questions {
		q := &questions[i]
		if q.QuestionType != model.QuestionTypeCoding {
			continue
		}

		key := strconv.Itoa(q.OrderNum)
		run := s.sandbox.Run(ctx, sandbox.RunRequest{
			Language:  q.Language,
			Code:      answers[key],
			TestCases: q.TestCases,
		})

		result.Score += run.Passed
		result.MaxScore += run.Total

		if summaries == nil {
			summaries = make(map[string]string)
		}
		summaries[key] = run.Summary()
	}
	return summaries
}

// clampTimeTaken bounds the client-reported duration by the server-side
// session clock and the exam duration. The client number is advisory.
func (s *SubmissionService) clampTimeTaken(ctx context.Context, examID uuid.UUID, studentID int, exam *model.Exam, reported int) int {
	limit := exam.DurationMinutes * 60

	startedAt, err := s.examSvc.SessionStart(ctx, examID, studentID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Err(err).Int("student_id", studentID).Msg("failed to load session start")
		}
	} else {
		elapsed := int(time.Since(startedAt).Seconds())
		if reported > elapsed {
			reported = elapsed
		}
	}

	if reported < 0 {
		reported = 0
	}
	if limit > 0 && reported > limit {
		reported = limit
	}
	return reported
}

func (s *SubmissionService) finishSession(ctx context.Context, examID uuid.UUID, studentID int, reason string) {
	status := model.SessionSubmitted
	if reason == "proctor_terminated" {
		status = model.SessionTerminated
	}
	if err := s.sessions.End(ctx, examID, studentID, status, time.Now()); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("failed to end session")
	}
	s.examSvc.ClearSavedAnswers(ctx, examID, studentID)
}

func (s *SubmissionService) enqueueRescore(ctx context.Context, examID uuid.UUID) {
	if err := s.rdb.RPush(ctx, config.WorkerKey.RescoreQueue, examID.String()).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("failed to enqueue rescore")
	}
}
