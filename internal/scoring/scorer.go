// Package scoring computes submission scores and the final integrity
// verdict. Score is a pure function of its inputs: identical inputs always
// produce identical results, so re-scoring is safe at any time.
package scoring

import (
	"strconv"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
)

// PeerAnswers is another student's answer set for the same exam, used for
// cross-candidate plagiarism comparison.
type PeerAnswers struct {
	StudentID int
	Answers   map[string]string
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score      int
	MaxScore   int
	Behavioral model.BehavioralScore
	Plagiarism model.PlagiarismScore
	Verdict    model.Verdict
}

// Scorer scores submissions against a verdict policy.
type Scorer struct {
	policy config.VerdictPolicy
}

// NewScorer creates a Scorer. Use config.DefaultVerdictPolicy() unless the
// deployment overrides thresholds.
func NewScorer(policy config.VerdictPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Score grades the MCQ answers, derives behavioral risk and plagiarism
// similarity, and assigns a verdict. peers is an eventually-consistent read
// of other submissions for the same exam; a slightly stale set is fine.
func (s *Scorer) Score(req *model.SubmitRequest, questions []model.Question, peers []PeerAnswers) Result {
	res := Result{}

	for _, q := range questions {
		if q.QuestionType != model.QuestionTypeMultipleChoice {
			continue
		}
		res.MaxScore++
		ans, ok := req.Answers[strconv.Itoa(q.OrderNum)]
		// Exact string match, case-sensitive. No partial credit, no
		// negative marking.
		if ok && ans == q.CorrectAnswer {
			res.Score++
		}
	}

	res.Behavioral = BehavioralRisk(req.BehavioralData, req.TimeTakenSeconds, len(questions))
	res.Plagiarism = PlagiarismSimilarity(req.Answers, peers)
	res.Verdict = s.ClassifyVerdict(res.Plagiarism.Percentage, res.Behavioral.OverallRisk, req.Warnings)

	return res
}

// ClassifyVerdict applies the ordered threshold policy: first match wins,
// and raising any single input never lowers the verdict.
func (s *Scorer) ClassifyVerdict(plagiarismPct, behavioralRisk float64, warnings int) model.Verdict {
	switch {
	case plagiarismPct > s.policy.CheatingPlagiarism,
		behavioralRisk > s.policy.CheatingBehavioral,
		warnings > s.policy.CheatingWarnings:
		return model.VerdictCheating
	case plagiarismPct > s.policy.SuspiciousPlagiarism,
		behavioralRisk > s.policy.SuspiciousBehavioral,
		warnings > s.policy.SuspiciousWarnings:
		return model.VerdictSuspicious
	default:
		return model.VerdictClean
	}
}
