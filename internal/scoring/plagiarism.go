package scoring

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sentra-edu/proctor-backend/internal/model"
)

// matchRecordThreshold is the similarity above which a peer is recorded in
// the match list for human review.
const matchRecordThreshold = 30.0

// PlagiarismSimilarity compares a submission's serialized answers against
// every peer's and reports the MAXIMUM pairwise Jaccard token similarity.
// Plagiarism detection cares about the closest match, not the typical
// distance. A submission compared with itself scores 100; disjoint token
// sets score 0.
func PlagiarismSimilarity(answers map[string]string, peers []PeerAnswers) model.PlagiarismScore {
	own := tokenSet(serializeAnswers(answers))

	score := model.PlagiarismScore{IntegrityScore: 100}
	if len(own) == 0 {
		return score
	}

	for _, peer := range peers {
		sim := jaccard(own, tokenSet(serializeAnswers(peer.Answers)))
		if sim > score.Percentage {
			score.Percentage = sim
		}
		if sim > matchRecordThreshold {
			score.Matches = append(score.Matches, model.PlagiarismMatch{
				StudentID:  peer.StudentID,
				Similarity: sim,
			})
		}
	}

	sort.Slice(score.Matches, func(i, j int) bool {
		if score.Matches[i].Similarity != score.Matches[j].Similarity {
			return score.Matches[i].Similarity > score.Matches[j].Similarity
		}
		return score.Matches[i].StudentID < score.Matches[j].StudentID
	})

	score.IntegrityScore = 100 - score.Percentage
	return score
}

// serializeAnswers renders an answer map deterministically: question index
// order, "index=answer" pairs.
func serializeAnswers(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(answers[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// tokenSet lowercases and splits on non-alphanumeric runes.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b| as a percentage.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union) * 100
}
