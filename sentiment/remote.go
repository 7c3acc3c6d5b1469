package sentiment

import (
	"context"

	"github.com/maastricht-university/interview-coach/clients"
)

// RemoteVader calls the VADER endpoint of the sentiment model service.
type RemoteVader struct {
	http *clients.HTTP
	url  string
}

func NewRemoteVader(http *clients.HTTP, url string) *RemoteVader {
	return &RemoteVader{http: http, url: url}
}

func (v *RemoteVader) Polarity(ctx context.Context, text string) (Polarity, error) {
	out, err := v.http.Vader(ctx, v.url, text)
	if err != nil {
		return Polarity{}, err
	}
	return Polarity{Neg: out.Neg, Neu: out.Neu, Pos: out.Pos, Compound: out.Compound}, nil
}

// RemoteRoberta calls the RoBERTa endpoint of the sentiment model service.
type RemoteRoberta struct {
	http *clients.HTTP
	url  string
}

func NewRemoteRoberta(http *clients.HTTP, url string) *RemoteRoberta {
	return &RemoteRoberta{http: http, url: url}
}

func (r *RemoteRoberta) Classify(ctx context.Context, text string) (ClassProbabilities, error) {
	out, err := r.http.Roberta(ctx, r.url, text)
	if err != nil {
		return ClassProbabilities{}, err
	}
	return ClassProbabilities{Neg: out.Neg, Neu: out.Neu, Pos: out.Pos}, nil
}
