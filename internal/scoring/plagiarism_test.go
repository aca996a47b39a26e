package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlagiarismSelfComparisonIsFull(t *testing.T) {
	answers := map[string]string{
		"0": "photosynthesis converts light into chemical energy",
		"1": "the mitochondria is the powerhouse of the cell",
	}

	score := PlagiarismSimilarity(answers, []PeerAnswers{{StudentID: 9, Answers: answers}})

	assert.Equal(t, 100.0, score.Percentage)
	assert.Equal(t, 0.0, score.IntegrityScore)
}

func TestPlagiarismDisjointIsZero(t *testing.T) {
	a := map[string]string{"0": "alpha beta gamma"}
	b := map[string]string{"0": "delta epsilon zeta"}

	score := PlagiarismSimilarity(a, []PeerAnswers{{StudentID: 2, Answers: b}})

	assert.Equal(t, 0.0, score.Percentage)
	assert.Equal(t, 100.0, score.IntegrityScore)
	assert.Empty(t, score.Matches)
}

func TestPlagiarismTakesMaxOverPeers(t *testing.T) {
	own := map[string]string{"0": "one two three four"}
	peers := []PeerAnswers{
		{StudentID: 2, Answers: map[string]string{"0": "five six seven eight"}},
		{StudentID: 3, Answers: map[string]string{"0": "one two three four"}},
		{StudentID: 4, Answers: map[string]string{"0": "one two nine ten"}},
	}

	score := PlagiarismSimilarity(own, peers)

	assert.Equal(t, 100.0, score.Percentage, "closest match wins, not the average")
	require.NotEmpty(t, score.Matches)
	assert.Equal(t, 3, score.Matches[0].StudentID, "matches sorted by similarity")
}

func TestPlagiarismTokenizationIgnoresCaseAndPunctuation(t *testing.T) {
	a := map[string]string{"0": "Paris, the capital of France!"}
	b := map[string]string{"0": "paris the capital of france"}

	score := PlagiarismSimilarity(a, b2peers(b))

	assert.Equal(t, 100.0, score.Percentage)
}

func TestPlagiarismEmptyAnswersAreNeutral(t *testing.T) {
	score := PlagiarismSimilarity(nil, []PeerAnswers{{StudentID: 2, Answers: map[string]string{"0": "text"}}})
	assert.Equal(t, 0.0, score.Percentage)
}

func b2peers(answers map[string]string) []PeerAnswers {
	return []PeerAnswers{{StudentID: 2, Answers: answers}}
}
