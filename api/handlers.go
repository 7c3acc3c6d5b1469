package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maastricht-university/interview-coach/orchestrator"
)

const maxAudioBytes = 32 << 20

// flexID accepts ids sent as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type sessionRequest struct {
	SessionID     flexID  `json:"sessionId"`
	InterviewID   flexID  `json:"interviewId"`
	QuestionID    flexID  `json:"questionId"`
	Transcript    string  `json:"transcript"`
	ResponseScore float64 `json:"responseScore"`
}

func (r sessionRequest) id() string {
	if id := strings.TrimSpace(string(r.SessionID)); id != "" {
		return id
	}
	return strings.TrimSpace(string(r.InterviewID))
}

// decode reads a JSON body. An empty body decodes to the zero request.
func decode(w http.ResponseWriter, r *http.Request, out *sessionRequest) bool {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	respondError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	id := req.id()
	if id == "" {
		respondError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	if err := s.engine.Start(r.Context(), id); err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyExists) {
			respondError(w, http.StatusBadRequest, "Session already active")
			return
		}
		if errors.Is(err, orchestrator.ErrShuttingDown) {
			respondError(w, http.StatusServiceUnavailable, "Server shutting down")
			return
		}
		s.log.WithError(err).WithField("session", id).Error("start session")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"sessionId": id,
		"message":   "Analysis session started",
	})
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	id := req.id()
	if id == "" {
		respondError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	res, err := s.engine.Stop(r.Context(), id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("session", id).Error("stop session")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": res,
	})
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("interviewId"))
	}
	st, ok := s.engine.Status(id)
	if id == "" || !ok {
		respondJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active":  true,
		"results": st,
	})
}

func (s *Server) analyzeTranscript(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	id := req.id()
	if id == "" || req.Transcript == "" {
		respondError(w, http.StatusBadRequest, "Session ID and transcript required")
		return
	}

	analysis := s.engine.AnalyzeTranscript(r.Context(), id, string(req.QuestionID), req.Transcript)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"voiceAnalysis": analysis,
		"sessionId":     id,
	})
}

func (s *Server) analyzeQuestionResponse(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	id := req.id()
	if id == "" {
		respondError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	res := s.engine.AnalyzeQuestionResponse(r.Context(), id, string(req.QuestionID), req.Transcript, req.ResponseScore)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"questionId": res.QuestionID,
		"scores":     res.Scores,
		"breakdown": map[string]string{
			"responseWeight": "50%",
			"voiceWeight":    "25%",
			"bodyWeight":     "25%",
		},
		"voiceAnalysis": res.Voice,
		"timestamp":     res.ScoredAt.Format(time.RFC3339),
	})
}

// analyzeAudio transcribes an uploaded answer and then follows the transcript flow.
func (s *Server) analyzeAudio(w http.ResponseWriter, r *http.Request) {
	if s.asr == nil {
		respondError(w, http.StatusServiceUnavailable, "Transcription service not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := strings.TrimSpace(r.FormValue("sessionId"))
	if id == "" {
		id = strings.TrimSpace(r.FormValue("interviewId"))
	}
	if id == "" {
		respondError(w, http.StatusBadRequest, "Session ID required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Audio file required")
		return
	}
	defer file.Close()

	log := s.log.WithField("session", id)
	transcript, err := s.asr.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		log.WithError(err).Warn("transcription failed")
		respondError(w, http.StatusBadGateway, "Transcription failed")
		return
	}
	if strings.TrimSpace(transcript) == "" {
		respondError(w, http.StatusUnprocessableEntity, "No speech recognized")
		return
	}

	analysis := s.engine.AnalyzeTranscript(r.Context(), id, r.FormValue("questionId"), transcript)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"transcript":    transcript,
		"voiceAnalysis": analysis,
		"sessionId":     id,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	h := s.engine.Health()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"models":          h.Models,
		"active_sessions": h.ActiveSessions,
	})
}
