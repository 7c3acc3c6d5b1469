package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/maastricht-university/interview-coach/bodylang"
	"github.com/maastricht-university/interview-coach/camera"
	"github.com/maastricht-university/interview-coach/rolling"
)

// Session is one running interview. Its fields are guarded by mu; the capture
// loop and request handlers write to it concurrently.
type Session struct {
	id        string
	startedAt time.Time
	tracker   *bodylang.Tracker
	hub       *frameHub

	ctx       context.Context
	cancel    context.CancelFunc
	loops     sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	mu         sync.Mutex
	active     bool
	source     camera.Source
	body       *rolling.Buffer
	voice      *rolling.Buffer
	label      bodylang.Label
	confidence float64
	updated    string
	questions  []QuestionAnalysis
}

func newSession(id string, s Settings, tracker *bodylang.Tracker) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		startedAt: time.Now(),
		tracker:   tracker,
		hub:       newFrameHub(),
		ctx:       ctx,
		cancel:    cancel,
		active:    true,
		body:      rolling.New(s.BodyWindow),
		voice:     rolling.New(s.VoiceWindow),
		label:     bodylang.LabelNone,
	}
}

// attach hands the camera to the session and reserves a slot for the capture
// loop. It fails once the session has been stopped.
func (s *Session) attach(src camera.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.source = src
	s.loops.Add(1)
	return true
}

func (s *Session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// observe records one classified frame. bodyScore is the tracker's smoothed value.
func (s *Session) observe(label bodylang.Label, confidence, bodyScore float64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.body.Push(bodyScore)
	s.label = label
	s.confidence = confidence
	s.updated = at.Format("15:04:05")
	return true
}

func (s *Session) pushVoice(score float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.voice.Push(score)
	return true
}

func (s *Session) bodyScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.Mean()
}

// record appends a question with the body score at call time.
func (s *Session) record(questionID, transcript string, voiceScore float64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.questions = append(s.questions, QuestionAnalysis{
		QuestionID:        questionID,
		Transcript:        transcript,
		VoiceToneScore:    voiceScore,
		BodyLanguageScore: s.body.Mean(),
		Timestamp:         at.Format(time.RFC3339),
	})
	return true
}

// answer pushes the voice score and records the question under one lock.
func (s *Session) answer(questionID, transcript string, voiceScore float64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.voice.Push(voiceScore)
	s.questions = append(s.questions, QuestionAnalysis{
		QuestionID:        questionID,
		Transcript:        transcript,
		VoiceToneScore:    voiceScore,
		BodyLanguageScore: s.body.Mean(),
		Timestamp:         at.Format(time.RFC3339),
	})
	return true
}

func (s *Session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := BodyNotDetected
	if s.label != bodylang.LabelNone {
		label = capitalize(string(s.label))
	}
	return Status{
		BodyLanguage:     label,
		BodyConfidence:   round2(s.confidence),
		Aggregate:        NewAggregate(s.body.Mean(), s.voice.Mean()),
		Timestamp:        s.updated,
		SessionActive:    s.active,
		QuestionAnalyses: s.questionsCopy(),
	}
}

func (s *Session) final(stoppedAt time.Time) FinalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FinalResult{
		SessionID:        s.id,
		Aggregate:        NewAggregate(s.body.Mean(), s.voice.Mean()),
		QuestionAnalyses: s.questionsCopy(),
		StartedAt:        s.startedAt,
		StoppedAt:        stoppedAt,
	}
}

// questionsCopy never returns nil so the list encodes as [].
func (s *Session) questionsCopy() []QuestionAnalysis {
	return append(make([]QuestionAnalysis, 0, len(s.questions)), s.questions...)
}

// release closes the camera source exactly once.
func (s *Session) release() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		src := s.source
		s.mu.Unlock()
		if src != nil {
			s.closeErr = src.Close()
		}
	})
	return s.closeErr
}

// shutdown clears the active flag, stops the capture loop, releases the
// camera and waits for the loop to return. Nothing mutates the session after it.
func (s *Session) shutdown() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.cancel()
	err := s.release()
	s.loops.Wait()
	s.hub.close()
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
