package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcq(order int, text, correct string) model.Question {
	return model.Question{
		ID:            uuid.New(),
		QuestionText:  text,
		QuestionType:  model.QuestionTypeMultipleChoice,
		CorrectAnswer: correct,
		OrderNum:      order,
	}
}

func TestScoreMCQExactMatch(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())
	questions := []model.Question{
		mcq(0, "Capital of France?", "Paris"),
		mcq(1, "Red planet?", "Mars"),
	}
	req := &model.SubmitRequest{
		Answers:          map[string]string{"0": "Paris", "1": "Venus"},
		TimeTakenSeconds: 300,
	}

	res := scorer.Score(req, questions, nil)

	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.MaxScore)
	assert.Equal(t, model.VerdictClean, res.Verdict)
}

func TestScoreMCQCaseSensitive(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())
	questions := []model.Question{mcq(0, "Capital of France?", "Paris")}
	req := &model.SubmitRequest{
		Answers:          map[string]string{"0": "paris"},
		TimeTakenSeconds: 120,
	}

	res := scorer.Score(req, questions, nil)

	assert.Equal(t, 0, res.Score, "lowercase answer must not match")
	assert.Equal(t, 1, res.MaxScore)
}

func TestScoreSkipsCodingQuestions(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())
	questions := []model.Question{
		mcq(0, "Capital of France?", "Paris"),
		{QuestionType: model.QuestionTypeCoding, OrderNum: 1, Language: "python"},
	}
	req := &model.SubmitRequest{
		Answers:          map[string]string{"0": "Paris", "1": "print(1)"},
		TimeTakenSeconds: 200,
	}

	res := scorer.Score(req, questions, nil)

	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 1, res.MaxScore, "coding questions are graded by the sandbox, not the scorer")
}

func TestScoreDeterministic(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())
	questions := []model.Question{
		mcq(0, "Q1", "A"),
		mcq(1, "Q2", "B"),
	}
	req := &model.SubmitRequest{
		Answers:          map[string]string{"0": "A", "1": "C"},
		TimeTakenSeconds: 40,
		Warnings:         3,
		BehavioralData: model.BehavioralData{
			KeystrokeTimestamps: []int64{0, 100, 180, 300, 410, 500, 640, 700, 850, 910, 1000},
			PasteEvents:         []model.PasteEvent{{Length: 200, Timestamp: 500}},
		},
	}
	peers := []PeerAnswers{
		{StudentID: 2, Answers: map[string]string{"0": "A", "1": "C"}},
		{StudentID: 3, Answers: map[string]string{"0": "x", "1": "y"}},
	}

	first := scorer.Score(req, questions, peers)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scorer.Score(req, questions, peers))
	}
}

func TestIdenticalAnswersAcrossStudentsIsCheating(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())
	questions := []model.Question{
		mcq(0, "Q1", "Paris"),
		mcq(1, "Q2", "Mars"),
	}
	shared := map[string]string{
		"0": "the capital city of france is paris because of historical reasons",
		"1": "mars is called the red planet due to iron oxide on its surface",
	}
	reqA := &model.SubmitRequest{Answers: shared, TimeTakenSeconds: 600}
	reqB := &model.SubmitRequest{Answers: shared, TimeTakenSeconds: 650}

	resA := scorer.Score(reqA, questions, []PeerAnswers{{StudentID: 2, Answers: reqB.Answers}})
	resB := scorer.Score(reqB, questions, []PeerAnswers{{StudentID: 1, Answers: reqA.Answers}})

	assert.GreaterOrEqual(t, resA.Plagiarism.Percentage, 70.0)
	assert.GreaterOrEqual(t, resB.Plagiarism.Percentage, 70.0)
	assert.Equal(t, model.VerdictCheating, resA.Verdict)
	assert.Equal(t, model.VerdictCheating, resB.Verdict)
	require.NotEmpty(t, resA.Plagiarism.Matches)
	assert.Equal(t, 2, resA.Plagiarism.Matches[0].StudentID)
}

func TestClassifyVerdictThresholds(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())

	cases := []struct {
		name       string
		plagiarism float64
		behavioral float64
		warnings   int
		want       model.Verdict
	}{
		{"all zero", 0, 0, 0, model.VerdictClean},
		{"at suspicious boundary", 40, 40, 2, model.VerdictClean},
		{"plagiarism just over suspicious", 40.1, 0, 0, model.VerdictSuspicious},
		{"behavioral just over suspicious", 0, 40.1, 0, model.VerdictSuspicious},
		{"warnings over suspicious", 0, 0, 3, model.VerdictSuspicious},
		{"at cheating boundary", 70, 70, 5, model.VerdictSuspicious},
		{"plagiarism over cheating", 70.1, 0, 0, model.VerdictCheating},
		{"behavioral over cheating", 0, 70.1, 0, model.VerdictCheating},
		{"warnings over cheating", 0, 0, 6, model.VerdictCheating},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scorer.ClassifyVerdict(tc.plagiarism, tc.behavioral, tc.warnings))
		})
	}
}

// Raising any one signal while holding the others fixed must never lower
// the verdict.
func TestVerdictMonotonic(t *testing.T) {
	scorer := NewScorer(config.DefaultVerdictPolicy())

	plagLevels := []float64{0, 41, 71}
	riskLevels := []float64{0, 41, 71}
	warnLevels := []int{0, 3, 6}

	for _, p := range plagLevels {
		for _, r := range riskLevels {
			for wi, w := range warnLevels {
				base := scorer.ClassifyVerdict(p, r, w)

				assert.GreaterOrEqual(t, scorer.ClassifyVerdict(p+30, r, w).Rank(), base.Rank())
				assert.GreaterOrEqual(t, scorer.ClassifyVerdict(p, r+30, w).Rank(), base.Rank())
				if wi < len(warnLevels)-1 {
					assert.GreaterOrEqual(t, scorer.ClassifyVerdict(p, r, warnLevels[wi+1]).Rank(), base.Rank())
				}
			}
		}
	}
}

func TestCustomPolicyOverridesThresholds(t *testing.T) {
	policy := config.DefaultVerdictPolicy()
	policy.CheatingWarnings = 1
	scorer := NewScorer(policy)

	assert.Equal(t, model.VerdictCheating, scorer.ClassifyVerdict(0, 0, 2))
}
