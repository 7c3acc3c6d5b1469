// Package api exposes the coaching engine over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-coach/orchestrator"
)

// Transcriber turns an uploaded audio answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Options struct {
	Engine       *orchestrator.Engine
	Transcriber  Transcriber // nil disables /api/analyze/audio
	Log          logrus.FieldLogger
	LiveInterval time.Duration
	CORSOrigins  []string
}

type Server struct {
	engine       *orchestrator.Engine
	asr          Transcriber
	log          logrus.FieldLogger
	liveInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewHandler builds the routed, CORS-wrapped handler.
func NewHandler(o Options) http.Handler {
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if o.LiveInterval <= 0 {
		o.LiveInterval = time.Second
	}
	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		engine:       o.Engine,
		asr:          o.Transcriber,
		log:          o.Log,
		liveInterval: o.LiveInterval,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.Use(requestID, s.accessLog, s.recoverer)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session/start", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/session/stop", s.stopSession).Methods(http.MethodPost)
	api.HandleFunc("/session/status", s.sessionStatus).Methods(http.MethodGet)
	api.HandleFunc("/session/live/{sessionId}", s.liveStatus).Methods(http.MethodGet)
	api.HandleFunc("/analyze/transcript", s.analyzeTranscript).Methods(http.MethodPost)
	api.HandleFunc("/analyze/question-response", s.analyzeQuestionResponse).Methods(http.MethodPost)
	api.HandleFunc("/analyze/audio", s.analyzeAudio).Methods(http.MethodPost)
	api.HandleFunc("/video-feed/{sessionId}", s.videoFeed).Methods(http.MethodGet)
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(router)
}
