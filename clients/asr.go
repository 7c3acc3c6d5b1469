package clients

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

// Text joins the segment texts into one transcript.
func (r *ASRResp) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (h *HTTP) ASR(ctx context.Context, url, filename string, audio io.Reader) (*ASRResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(fw, audio); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(url, "/transcribe"), &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out ASRResp
	if err := h.do(req, "asr", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ASRTranscriber binds the ASR client to one service URL.
type ASRTranscriber struct {
	HTTP *HTTP
	URL  string
}

func (t ASRTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := t.HTTP.ASR(ctx, t.URL, filename, audio)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
