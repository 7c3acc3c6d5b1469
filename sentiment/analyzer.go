// Package sentiment scores spoken answers from their transcript text.
package sentiment

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Polarity is a lexicon estimator's output; Compound is in [-1, 1].
type Polarity struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// ClassProbabilities is a neural estimator's softmax over negative/neutral/positive.
type ClassProbabilities struct {
	Neg float64 `json:"roberta_neg"`
	Neu float64 `json:"roberta_neu"`
	Pos float64 `json:"roberta_pos"`
}

type LexiconEstimator interface {
	Polarity(ctx context.Context, text string) (Polarity, error)
}

type NeuralEstimator interface {
	Classify(ctx context.Context, text string) (ClassProbabilities, error)
}

// Analysis is what callers get back for one transcript.
type Analysis struct {
	VoiceToneScore float64            `json:"voice_tone_score"`
	Vader          Polarity           `json:"vader"`
	Roberta        ClassProbabilities `json:"roberta"`
}

// Analyzer averages a lexicon and a neural estimator onto [0, 100]. A nil
// estimator counts as unavailable and contributes its zero value.
type Analyzer struct {
	lexicon LexiconEstimator
	neural  NeuralEstimator
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewAnalyzer(lexicon LexiconEstimator, neural NeuralEstimator, timeout time.Duration, log logrus.FieldLogger) *Analyzer {
	return &Analyzer{lexicon: lexicon, neural: neural, timeout: timeout, log: log}
}

func (a *Analyzer) LexiconAvailable() bool { return a.lexicon != nil }
func (a *Analyzer) NeuralAvailable() bool  { return a.neural != nil }

func (a *Analyzer) Analyze(ctx context.Context, text string) Analysis {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var (
		out Analysis
		wg  sync.WaitGroup
	)
	if a.lexicon != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.lexicon.Polarity(ctx, text)
			if err != nil {
				a.log.WithError(err).Warn("lexicon sentiment failed, using neutral scores")
				return
			}
			out.Vader = p
		}()
	}
	if a.neural != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.neural.Classify(ctx, text)
			if err != nil {
				a.log.WithError(err).Warn("neural sentiment failed, using zero scores")
				return
			}
			out.Roberta = p
		}()
	}
	wg.Wait()

	out.VoiceToneScore = VoiceToneScore(out.Vader.Compound, out.Roberta.Pos)
	return out
}

// VoiceToneScore maps compound from [-1, 1] and pos from [0, 1] onto [0, 100]
// and averages them, rounded to two decimals.
func VoiceToneScore(compound, pos float64) float64 {
	lexicon := (compound + 1) * 50
	neural := pos * 100
	return math.Round((lexicon+neural)/2*100) / 100
}
