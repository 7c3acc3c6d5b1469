package bodylang

import (
	"context"
	"errors"

	"github.com/maastricht-university/interview-coach/clients"
)

var ErrUnavailable = errors.New("body language model unavailable")

// RemoteClassifier calls the vision model service.
type RemoteClassifier struct {
	http      *clients.HTTP
	url       string
	available bool
}

// NewRemoteClassifier builds a classifier whose availability was settled by a
// startup probe; it is never re-probed.
func NewRemoteClassifier(http *clients.HTTP, url string, available bool) *RemoteClassifier {
	return &RemoteClassifier{http: http, url: url, available: available && url != ""}
}

func (c *RemoteClassifier) Available() bool { return c.available }

func (c *RemoteClassifier) Predict(ctx context.Context, jpeg []byte) (float64, error) {
	if !c.available {
		return 0, ErrUnavailable
	}
	out, err := c.http.BodyPredict(ctx, c.url, jpeg)
	if err != nil {
		return 0, err
	}
	return out.Probability, nil
}
