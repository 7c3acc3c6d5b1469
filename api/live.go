package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const liveWriteWait = 5 * time.Second

type liveMessage struct {
	Active  bool `json:"active"`
	Results any  `json:"results,omitempty"`
}

// liveStatus pushes the session status over a websocket every live interval
// and closes once the session is gone.
func (s *Server) liveStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	if _, ok := s.engine.Status(id); !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	// drain client frames so close messages are seen
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.liveInterval)
	defer ticker.Stop()
	for {
		st, ok := s.engine.Status(id)
		msg := liveMessage{Active: ok}
		if ok {
			msg.Results = st
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
				time.Now().Add(liveWriteWait))
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
