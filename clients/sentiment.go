package clients

import "context"

type TextReq struct {
	Text string `json:"text"`
}

// --- VADER (/vader) ---
type VaderResp struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

func (h *HTTP) Vader(ctx context.Context, url, text string) (*VaderResp, error) {
	var out VaderResp
	if err := h.postJSON(ctx, "vader", endpoint(url, "/vader"), TextReq{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- RoBERTa (/roberta) ---
type RobertaResp struct {
	Neg float64 `json:"neg"`
	Neu float64 `json:"neu"`
	Pos float64 `json:"pos"`
}

func (h *HTTP) Roberta(ctx context.Context, url, text string) (*RobertaResp, error) {
	var out RobertaResp
	if err := h.postJSON(ctx, "roberta", endpoint(url, "/roberta"), TextReq{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
