package orchestrator

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-coach/bodylang"
	"github.com/maastricht-university/interview-coach/camera"
	"github.com/maastricht-university/interview-coach/overlay"
)

const captureRetryPause = 50 * time.Millisecond

// capture is the per-session loop: pull a frame, classify it, fold the
// smoothed score into the session and publish the frame to viewers.
func (e *Engine) capture(s *Session, src camera.Source) {
	defer s.loops.Done()
	defer func() {
		if err := s.release(); err != nil {
			e.log.WithField("session", s.id).WithError(err).Debug("camera close")
		}
	}()

	log := e.log.WithField("session", s.id)
	ctx := s.ctx
	failures := 0
	for {
		if ctx.Err() != nil || !s.isActive() {
			return
		}

		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, camera.ErrClosed) || errors.Is(err, io.EOF) {
				log.WithError(err).Debug("capture ended")
				return
			}
			failures++
			if e.settings.MaxCaptureFailures > 0 && failures >= e.settings.MaxCaptureFailures {
				log.WithError(err).WithField("failures", failures).Error("camera keeps failing, body language frozen")
				return
			}
			log.WithError(err).Debug("frame capture failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(captureRetryPause):
			}
			continue
		}
		failures = 0

		label, confidence := s.tracker.Classify(ctx, frame.JPEG)
		if label != bodylang.LabelNone {
			at := frame.CapturedAt
			if at.IsZero() {
				at = time.Now()
			}
			if !s.observe(label, confidence, s.tracker.Average(), at) {
				return
			}
		}

		s.hub.publish(e.render(log, frame.JPEG, label, confidence, s.hub.watching()))
	}
}

// render draws the overlay only when someone is watching a classified frame.
func (e *Engine) render(log logrus.FieldLogger, jpeg []byte, label bodylang.Label, confidence float64, watching bool) []byte {
	if !watching || label == bodylang.LabelNone {
		return jpeg
	}
	out, err := overlay.Annotate(jpeg, string(label), confidence)
	if err != nil {
		log.WithError(err).Debug("overlay failed, streaming raw frame")
		return jpeg
	}
	return out
}
