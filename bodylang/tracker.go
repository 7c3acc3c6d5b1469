// Package bodylang turns per-frame posture predictions into a smoothed confidence signal.
package bodylang

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-coach/rolling"
)

type Label string

const (
	LabelConfident   Label = "confident"
	LabelUnconfident Label = "unconfident"
	LabelNone        Label = "none"
)

// Classifier predicts the probability that a JPEG frame shows a confident posture.
type Classifier interface {
	Predict(ctx context.Context, jpeg []byte) (float64, error)
	Available() bool
}

// Tracker smooths one session's predictions over a short window so single-frame
// jitter does not reach the session's longer window.
type Tracker struct {
	classifier Classifier
	timeout    time.Duration
	log        logrus.FieldLogger

	mu     sync.Mutex
	recent *rolling.Buffer
}

func NewTracker(classifier Classifier, window int, timeout time.Duration, log logrus.FieldLogger) *Tracker {
	return &Tracker{
		classifier: classifier,
		timeout:    timeout,
		log:        log,
		recent:     rolling.New(window),
	}
}

// Classify labels one frame. Faults and an unavailable classifier yield (LabelNone, 0).
func (t *Tracker) Classify(ctx context.Context, jpeg []byte) (Label, float64) {
	if t.classifier == nil || !t.classifier.Available() {
		return LabelNone, 0
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	p, err := t.classifier.Predict(ctx, jpeg)
	if err != nil {
		t.logFault(err)
		return LabelNone, 0
	}

	label, confidence := LabelUnconfident, (1-p)*100
	if p > 0.5 {
		label, confidence = LabelConfident, p*100
	}

	oriented := confidence
	if label == LabelUnconfident {
		oriented = 100 - confidence
	}

	t.mu.Lock()
	t.recent.Push(oriented)
	t.mu.Unlock()

	return label, confidence
}

// Average is the clamped mean of the recent window, 50 before any prediction.
func (t *Tracker) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recent.Mean()
}

func (t *Tracker) logFault(err error) {
	if t.log != nil {
		t.log.WithError(err).Debug("body language prediction failed")
	}
}
