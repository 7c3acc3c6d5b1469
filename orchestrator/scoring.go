package orchestrator

import "math"

const (
	bodyWeight  = 0.4
	voiceWeight = 0.6

	questionResponseWeight = 0.5
	questionVoiceWeight    = 0.25
	questionBodyWeight     = 0.25
)

func CombinedScore(body, voice float64) float64 {
	return bodyWeight*body + voiceWeight*voice
}

// StatusLabel buckets an unrounded combined score.
func StatusLabel(combined float64) string {
	switch {
	case combined >= 75:
		return StatusHighlyConfident
	case combined >= 60:
		return StatusConfident
	case combined >= 40:
		return StatusNeutral
	default:
		return StatusNeedsImprovement
	}
}

// QuestionFinalScore blends an externally evaluated response score with the
// voice and body signals. The response score is not range checked.
func QuestionFinalScore(response, voice, body float64) float64 {
	return questionResponseWeight*response + questionVoiceWeight*voice + questionBodyWeight*body
}

func NewAggregate(body, voice float64) Aggregate {
	combined := CombinedScore(body, voice)
	return Aggregate{
		BodyLanguageScore: round2(body),
		VoiceToneScore:    round2(voice),
		CombinedScore:     round2(combined),
		OverallStatus:     StatusLabel(combined),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
