package scoring

import (
	"testing"

	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

// steadyKeystrokes returns n timestamps exactly interval ms apart.
func steadyKeystrokes(n int, interval int64) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i) * interval
	}
	return ts
}

func TestTypingPatternLowVarianceIsSuspicious(t *testing.T) {
	// Perfectly even rhythm: stddev 0, maximal suspicion.
	robotic := typingPatternScore(steadyKeystrokes(50, 120))
	assert.Equal(t, 95.0, robotic)

	// Irregular human rhythm.
	human := []int64{0, 80, 310, 420, 900, 1000, 1450, 1500, 2100, 2340, 2400, 3100}
	assert.Less(t, typingPatternScore(human), robotic)
}

func TestTypingPatternInsufficientSample(t *testing.T) {
	assert.Equal(t, 0.0, typingPatternScore(nil))
	assert.Equal(t, 0.0, typingPatternScore(steadyKeystrokes(5, 100)))
}

func TestTypingPatternOutOfOrderDegradesToZero(t *testing.T) {
	ts := steadyKeystrokes(20, 100)
	ts[10] = 0
	assert.Equal(t, 0.0, typingPatternScore(ts))
}

func TestPasteRiskAdditiveAndCapped(t *testing.T) {
	small := []model.PasteEvent{{Length: 5}, {Length: 10}}
	assert.Equal(t, 0.0, pasteRiskScore(small))

	mixed := []model.PasteEvent{{Length: 150}, {Length: 50}}
	assert.Equal(t, 45.0, pasteRiskScore(mixed))

	flood := make([]model.PasteEvent, 10)
	for i := range flood {
		flood[i] = model.PasteEvent{Length: 500}
	}
	assert.Equal(t, 100.0, pasteRiskScore(flood), "paste risk is capped at 100")
}

func TestTimingRiskBands(t *testing.T) {
	assert.Equal(t, 80.0, timingRiskScore(45, 10), "4.5s/question is high risk")
	assert.Equal(t, 50.0, timingRiskScore(200, 10), "20s/question is medium risk")
	assert.Equal(t, 10.0, timingRiskScore(600, 10), "60s/question is low risk")
	assert.Equal(t, 0.0, timingRiskScore(600, 0), "no questions, no signal")
}

func TestOverallRiskIsMaxNotAverage(t *testing.T) {
	data := model.BehavioralData{
		// Robotic typing, no pastes.
		KeystrokeTimestamps: steadyKeystrokes(30, 100),
	}
	// Generous time: timing risk low.
	score := BehavioralRisk(data, 3600, 10)

	assert.Equal(t, 95.0, score.TypingPattern)
	assert.Equal(t, 0.0, score.PasteAnalysis)
	assert.Equal(t, 10.0, score.TimingAnalysis)
	assert.Equal(t, 95.0, score.OverallRisk, "one strong signal must not be diluted")
}

func TestBehavioralRiskEmptyInputIsNeutral(t *testing.T) {
	score := BehavioralRisk(model.BehavioralData{}, 0, 0)
	assert.Equal(t, 0.0, score.OverallRisk)
}
