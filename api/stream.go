package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/maastricht-university/interview-coach/orchestrator"
)

const frameBoundary = "frame"

// videoFeed streams the session's frames as multipart/x-mixed-replace until
// the session stops or the viewer disconnects.
func (s *Server) videoFeed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	stream, err := s.engine.Frames(id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer stream.Close()

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(frameBoundary); err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+frameBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	log := s.log.WithField("session", id)
	for {
		frame, err := stream.Next(r.Context())
		if err != nil {
			if errors.Is(err, orchestrator.ErrStreamClosed) {
				_ = mw.Close()
			}
			log.WithError(err).Debug("video feed ended")
			return
		}

		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "image/jpeg")
		h.Set("Content-Length", strconv.Itoa(len(frame)))
		part, err := mw.CreatePart(h)
		if err != nil {
			return
		}
		if _, err := part.Write(frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
