package orchestrator

import (
	"time"

	"github.com/maastricht-university/interview-coach/sentiment"
)

const (
	StatusHighlyConfident  = "Highly Confident"
	StatusConfident        = "Confident"
	StatusNeutral          = "Neutral"
	StatusNeedsImprovement = "Needs Improvement"

	// BodyNotDetected is reported until the first classified frame.
	BodyNotDetected = "Not Detected"
)

// QuestionAnalysis is one answered question, captured when its transcript arrives.
type QuestionAnalysis struct {
	QuestionID        string  `json:"questionId"`
	Transcript        string  `json:"transcript"`
	VoiceToneScore    float64 `json:"voice_tone_score"`
	BodyLanguageScore float64 `json:"body_language_score"`
	Timestamp         string  `json:"timestamp"` // RFC 3339
}

// Aggregate is the session-level blend of the two rolling means.
type Aggregate struct {
	BodyLanguageScore float64 `json:"body_language_score"`
	VoiceToneScore    float64 `json:"voice_tone_score"`
	CombinedScore     float64 `json:"combined_score"`
	OverallStatus     string  `json:"overall_status"`
}

// Status is the live view of a running session.
type Status struct {
	BodyLanguage   string  `json:"body_language"`
	BodyConfidence float64 `json:"body_confidence"`
	Aggregate
	Timestamp        string             `json:"timestamp"` // HH:MM:SS of the last classified frame
	SessionActive    bool               `json:"session_active"`
	QuestionAnalyses []QuestionAnalysis `json:"question_analyses"`
}

// FinalResult is returned by Stop and handed to the report sink.
type FinalResult struct {
	SessionID string `json:"sessionId"`
	Aggregate
	QuestionAnalyses []QuestionAnalysis `json:"question_analyses"`
	StartedAt        time.Time          `json:"started_at"`
	StoppedAt        time.Time          `json:"stopped_at"`
}

type QuestionScores struct {
	Response     float64 `json:"response"`
	VoiceTone    float64 `json:"voiceTone"`
	BodyLanguage float64 `json:"bodyLanguage"`
	Final        float64 `json:"final"`
}

// QuestionResult is the blended score of one answer.
type QuestionResult struct {
	QuestionID string
	Scores     QuestionScores
	Voice      sentiment.Analysis
	ScoredAt   time.Time
}

type ModelHealth struct {
	BodyLanguage bool `json:"body_language"`
	Roberta      bool `json:"roberta"`
}

type Health struct {
	Models         ModelHealth `json:"models"`
	ActiveSessions int         `json:"active_sessions"`
}
