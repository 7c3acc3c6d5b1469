package clients

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// --- Body language (/predict) ---
type BodyResp struct {
	// Probability that the frame shows a confident posture, in [0, 1].
	Probability float64 `json:"probability"`
}

func (h *HTTP) BodyPredict(ctx context.Context, url string, jpeg []byte) (*BodyResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err = fw.Write(jpeg); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(url, "/predict"), &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out BodyResp
	if err := h.do(req, "body", &out); err != nil {
		return nil, err
	}
	if out.Probability < 0 || out.Probability > 1 {
		return nil, fmt.Errorf("body: probability %v out of range", out.Probability)
	}
	return &out, nil
}
