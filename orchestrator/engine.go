// Package orchestrator runs interview sessions: a registry of live sessions,
// one capture loop per session, and the scoring that turns rolling body and
// voice signals into a status.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-coach/bodylang"
	"github.com/maastricht-university/interview-coach/camera"
	"github.com/maastricht-university/interview-coach/sentiment"
)

var (
	ErrAlreadyExists = errors.New("session already active")
	ErrNotFound      = errors.New("session not found")
	ErrStreamClosed  = errors.New("session stream closed")
	ErrShuttingDown  = errors.New("engine shutting down")
)

// VoiceAnalyzer scores transcripts. *sentiment.Analyzer implements it.
type VoiceAnalyzer interface {
	Analyze(ctx context.Context, text string) sentiment.Analysis
	NeuralAvailable() bool
}

// Settings sizes the per-session windows and bounds.
type Settings struct {
	BodyWindow         int
	VoiceWindow        int
	FrameWindow        int
	FrameTimeout       time.Duration
	MaxCaptureFailures int
	ReportTimeout      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		BodyWindow:         100,
		VoiceWindow:        50,
		FrameWindow:        30,
		FrameTimeout:       2 * time.Second,
		MaxCaptureFailures: 30,
		ReportTimeout:      5 * time.Second,
	}
}

// Deps are the engine's collaborators. Camera and Reporter may be nil.
type Deps struct {
	Camera   camera.Opener
	Body     bodylang.Classifier
	Voice    VoiceAnalyzer
	Reporter Reporter
	Log      logrus.FieldLogger
}

type Engine struct {
	camera   camera.Opener
	body     bodylang.Classifier
	voice    VoiceAnalyzer
	reporter Reporter
	log      logrus.FieldLogger
	settings Settings

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewEngine(d Deps, s Settings) *Engine {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	voice := d.Voice
	if voice == nil {
		voice = sentiment.NewAnalyzer(nil, nil, 0, log)
	}
	return &Engine{
		camera:   d.Camera,
		body:     d.Body,
		voice:    voice,
		reporter: d.Reporter,
		log:      log,
		settings: s,
		sessions: map[string]*Session{},
	}
}

// Start registers the session and launches its capture loop. A camera that
// fails to open leaves the session running without a body signal.
func (e *Engine) Start(ctx context.Context, id string) error {
	log := e.log.WithField("session", id)
	tracker := bodylang.NewTracker(e.body, e.settings.FrameWindow, e.settings.FrameTimeout, log)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := e.sessions[id]; ok {
		e.mu.Unlock()
		return ErrAlreadyExists
	}
	s := newSession(id, e.settings, tracker)
	e.sessions[id] = s
	e.mu.Unlock()

	log.Info("session started")

	if e.camera == nil {
		log.Info("no camera configured, body language disabled")
		return nil
	}
	src, err := e.camera.Open(ctx)
	if err != nil {
		log.WithError(err).Warn("camera unavailable, body language disabled")
		return nil
	}
	if !s.attach(src) {
		// stopped while the camera was opening
		_ = src.Close()
		return nil
	}
	go e.capture(s, src)
	return nil
}

// Stop evicts the session, tears down its capture loop and returns the final
// aggregate. Report failures are logged and do not fail the stop.
func (e *Engine) Stop(ctx context.Context, id string) (FinalResult, error) {
	// a client going away must not cut the report short
	return e.stop(context.WithoutCancel(ctx), id)
}

// stop releases the session unconditionally; reportCtx bounds only the report save.
func (e *Engine) stop(reportCtx context.Context, id string) (FinalResult, error) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return FinalResult{}, ErrNotFound
	}

	log := e.log.WithField("session", id)
	if err := s.shutdown(); err != nil {
		log.WithError(err).Warn("camera close")
	}

	res := s.final(time.Now())
	e.report(reportCtx, log, res)
	log.WithFields(logrus.Fields{
		"combined":  res.CombinedScore,
		"status":    res.OverallStatus,
		"questions": len(res.QuestionAnalyses),
	}).Info("session stopped")
	return res, nil
}

func (e *Engine) report(ctx context.Context, log logrus.FieldLogger, res FinalResult) {
	if e.reporter == nil {
		return
	}
	if e.settings.ReportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.ReportTimeout)
		defer cancel()
	}
	if err := e.reporter.Save(ctx, res); err != nil {
		log.WithError(err).Warn("saving session report failed")
	}
}

func (e *Engine) lookup(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return s, ok
}

func (e *Engine) Status(id string) (Status, bool) {
	s, ok := e.lookup(id)
	if !ok {
		return Status{}, false
	}
	return s.status(), true
}

// PushVoice scores the text and folds it into the session's voice window when
// the session is live. The analysis is returned either way.
func (e *Engine) PushVoice(ctx context.Context, id, text string) sentiment.Analysis {
	a := e.voice.Analyze(ctx, text)
	if s, ok := e.lookup(id); ok {
		s.pushVoice(a.VoiceToneScore)
	}
	return a
}

// RecordQuestion appends a question record. It reports false when the session
// is not live.
func (e *Engine) RecordQuestion(id, questionID, transcript string, voiceScore float64) bool {
	s, ok := e.lookup(id)
	if !ok {
		return false
	}
	return s.record(questionID, transcript, voiceScore, time.Now())
}

// AnalyzeTranscript scores an answer, pushes it into the voice window and
// records the question.
func (e *Engine) AnalyzeTranscript(ctx context.Context, id, questionID, transcript string) sentiment.Analysis {
	a := e.voice.Analyze(ctx, transcript)
	if s, ok := e.lookup(id); ok {
		s.answer(questionID, transcript, a.VoiceToneScore, time.Now())
	}
	return a
}

// AnalyzeQuestionResponse blends an evaluated response score with the voice
// and body signals. The body score is neutral when the session is not live.
func (e *Engine) AnalyzeQuestionResponse(ctx context.Context, id, questionID, transcript string, responseScore float64) QuestionResult {
	a := e.voice.Analyze(ctx, transcript)
	voice := a.VoiceToneScore

	body := 50.0
	if s, ok := e.lookup(id); ok {
		body = s.bodyScore()
		s.pushVoice(voice)
	}

	return QuestionResult{
		QuestionID: questionID,
		Scores: QuestionScores{
			Response:     round2(responseScore),
			VoiceTone:    round2(voice),
			BodyLanguage: round2(body),
			Final:        round2(QuestionFinalScore(responseScore, voice, body)),
		},
		Voice:    a,
		ScoredAt: time.Now(),
	}
}

// Frames subscribes to the session's frame stream. Callers must Close it.
func (e *Engine) Frames(id string) (*FrameStream, error) {
	s, ok := e.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.hub.subscribe(), nil
}

func (e *Engine) Health() Health {
	e.mu.Lock()
	n := len(e.sessions)
	e.mu.Unlock()
	return Health{
		Models: ModelHealth{
			BodyLanguage: e.body != nil && e.body.Available(),
			Roberta:      e.voice.NeuralAvailable(),
		},
		ActiveSessions: n,
	}
}

// Shutdown refuses new sessions and stops every live one concurrently. Every
// camera is released even when ctx expires; ctx only bounds the report saves.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = e.stop(ctx, id)
		}(id)
	}
	wg.Wait()
	return ctx.Err()
}
