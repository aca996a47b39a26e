package scoring

import (
	"math"

	"github.com/sentra-edu/proctor-backend/internal/model"
)

// Behavioral heuristics. Each sub-score is 0–100; the overall risk is the
// MAXIMUM of the three so a single strong signal is not averaged away.
const (
	// Minimum keystroke sample before typing rhythm is judged at all.
	minKeystrokeSample = 10

	// Keystroke-interval standard deviation cutoffs, in milliseconds.
	// Real humans type with irregular rhythm; machine-fed input is
	// suspiciously steady.
	typingStdDevBot    = 30.0
	typingStdDevSteady = 75.0
	typingStdDevLowVar = 120.0

	// Clipboard insertion size classes and their additive penalties.
	pasteLargeLen     = 100
	pasteMediumLen    = 30
	pasteLargePenalty = 30.0
	pasteMedPenalty   = 15.0

	// Average seconds per question below which answering speed is
	// implausible for honest work.
	timingHighCutoff   = 10.0
	timingMediumCutoff = 30.0
)

// BehavioralRisk combines typing, paste, and timing sub-scores.
// Malformed or missing input degrades to a zero-risk sub-score; behavioral
// analysis must never fail a submission.
func BehavioralRisk(data model.BehavioralData, timeTakenSeconds, questionCount int) model.BehavioralScore {
	score := model.BehavioralScore{
		TypingPattern:  typingPatternScore(data.KeystrokeTimestamps),
		PasteAnalysis:  pasteRiskScore(data.PasteEvents),
		TimingAnalysis: timingRiskScore(timeTakenSeconds, questionCount),
	}
	score.OverallRisk = math.Max(score.TypingPattern, math.Max(score.PasteAnalysis, score.TimingAnalysis))
	return score
}

// typingPatternScore scores the standard deviation of intervals between
// consecutive keystrokes. Low variance means high suspicion.
func typingPatternScore(timestamps []int64) float64 {
	if len(timestamps) < minKeystrokeSample {
		return 0
	}

	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		d := float64(timestamps[i] - timestamps[i-1])
		if d < 0 {
			// Out-of-order log, treat the whole sample as unusable.
			return 0
		}
		intervals = append(intervals, d)
	}

	sd := stdDev(intervals)
	switch {
	case sd < typingStdDevBot:
		return 95
	case sd < typingStdDevSteady:
		return 70
	case sd < typingStdDevLowVar:
		return 40
	default:
		return 10
	}
}

// pasteRiskScore penalizes medium and large clipboard insertions
// additively, capped at 100. Small pastes are ignored.
func pasteRiskScore(events []model.PasteEvent) float64 {
	var risk float64
	for _, ev := range events {
		switch {
		case ev.Length >= pasteLargeLen:
			risk += pasteLargePenalty
		case ev.Length >= pasteMediumLen:
			risk += pasteMedPenalty
		}
	}
	return math.Min(risk, 100)
}

// timingRiskScore grades average answering speed per question.
func timingRiskScore(timeTakenSeconds, questionCount int) float64 {
	if questionCount <= 0 || timeTakenSeconds <= 0 {
		return 0
	}
	avg := float64(timeTakenSeconds) / float64(questionCount)
	switch {
	case avg < timingHighCutoff:
		return 80
	case avg < timingMediumCutoff:
		return 50
	default:
		return 10
	}
}

func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))

	return math.Sqrt(variance)
}
