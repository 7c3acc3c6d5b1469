package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/interview-coach/camera"
	"github.com/maastricht-university/interview-coach/orchestrator"
	"github.com/maastricht-university/interview-coach/sentiment"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fixedLexicon struct{ p sentiment.Polarity }

func (l fixedLexicon) Polarity(context.Context, string) (sentiment.Polarity, error) { return l.p, nil }

type fixedNeural struct{ p sentiment.ClassProbabilities }

func (n fixedNeural) Classify(context.Context, string) (sentiment.ClassProbabilities, error) {
	return n.p, nil
}

type fixedClassifier struct{ p float64 }

func (c fixedClassifier) Available() bool { return true }

func (c fixedClassifier) Predict(context.Context, []byte) (float64, error) { return c.p, nil }

type loopSource struct {
	frame []byte
	done  chan struct{}
	once  sync.Once
}

func (s *loopSource) Next(ctx context.Context) (camera.Frame, error) {
	select {
	case <-ctx.Done():
		return camera.Frame{}, ctx.Err()
	case <-s.done:
		return camera.Frame{}, camera.ErrClosed
	case <-time.After(2 * time.Millisecond):
		return camera.Frame{JPEG: s.frame, CapturedAt: time.Now()}, nil
	}
}

func (s *loopSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type loopOpener struct{ frame []byte }

func (o loopOpener) Open(context.Context) (camera.Source, error) {
	return &loopSource{frame: o.frame, done: make(chan struct{})}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, audio)
	return f.text, f.err
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil))
	return buf.Bytes()
}

type fixture struct {
	srv    *httptest.Server
	engine *orchestrator.Engine
}

func newFixture(t *testing.T, cam camera.Opener, asr Transcriber) *fixture {
	t.Helper()
	log := quietLogger()
	voice := sentiment.NewAnalyzer(
		fixedLexicon{sentiment.Polarity{Compound: 0}},
		fixedNeural{sentiment.ClassProbabilities{Pos: 0.5}},
		time.Second, log)
	engine := orchestrator.NewEngine(orchestrator.Deps{
		Camera: cam,
		Body:   fixedClassifier{p: 0.9},
		Voice:  voice,
		Log:    log,
	}, orchestrator.DefaultSettings())

	srv := httptest.NewServer(NewHandler(Options{
		Engine:       engine,
		Transcriber:  asr,
		Log:          log,
		LiveInterval: 10 * time.Millisecond,
	}))
	t.Cleanup(func() {
		_ = engine.Shutdown(context.Background())
		srv.Close()
	})
	return &fixture{srv: srv, engine: engine}
}

func (f *fixture) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any, string) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out, string(raw)
}

func TestStartSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body := f.post(t, "/api/session/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Session ID required", body["error"])

	code, body = f.post(t, "/api/session/start", `{"interviewId": 42}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "42", body["sessionId"])
	assert.Equal(t, "Analysis session started", body["message"])

	code, body = f.post(t, "/api/session/start", `{"sessionId": "42"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Session already active", body["error"])
	assert.Equal(t, 1, f.engine.Health().ActiveSessions)
}

func TestStartDuringShutdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	require.NoError(t, f.engine.Shutdown(context.Background()))
	code, body := f.post(t, "/api/session/start", `{"sessionId":"late"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Server shutting down", body["error"])
	assert.Equal(t, 0, f.engine.Health().ActiveSessions)
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body := f.post(t, "/api/session/start", `{"sessionId":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", body["error"])

	code, body = f.post(t, "/api/session/start", `{"sessionId": true}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestStopSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body := f.post(t, "/api/session/stop", `{"sessionId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Session not found", body["error"])

	code, _ = f.post(t, "/api/session/start", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = f.post(t, "/api/analyze/transcript", `{"sessionId":"s1","questionId":3,"transcript":"I shipped it"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.post(t, "/api/session/stop", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	results := body["results"].(map[string]any)
	assert.Equal(t, "s1", results["sessionId"])
	assert.Equal(t, 50.0, results["combined_score"])
	assert.Equal(t, "Neutral", results["overall_status"])
	questions := results["question_analyses"].([]any)
	require.Len(t, questions, 1)
	assert.Equal(t, "3", questions[0].(map[string]any)["questionId"])

	_, status, _ := f.get(t, "/api/session/status?sessionId=s1")
	assert.Equal(t, false, status["active"])
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body, _ := f.get(t, "/api/session/status?sessionId=unknown")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"active": false}, body)

	_, body, _ = f.get(t, "/api/session/status")
	assert.Equal(t, false, body["active"])

	f.post(t, "/api/session/start", `{"sessionId":"s"}`)
	code, body, raw := f.get(t, "/api/session/status?sessionId=s")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])
	results := body["results"].(map[string]any)
	assert.Equal(t, "Not Detected", results["body_language"])
	assert.Equal(t, 50.0, results["body_language_score"])
	assert.Equal(t, 50.0, results["voice_tone_score"])
	assert.Equal(t, true, results["session_active"])
	assert.Contains(t, raw, `"question_analyses":[]`)
}

func TestAnalyzeTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body := f.post(t, "/api/analyze/transcript", `{"sessionId":"s"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Session ID and transcript required", body["error"])

	// stateless scoring without a live session
	code, body = f.post(t, "/api/analyze/transcript", `{"sessionId":"ghost","transcript":"hello"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ghost", body["sessionId"])
	va := body["voiceAnalysis"].(map[string]any)
	assert.Equal(t, 50.0, va["voice_tone_score"])
	assert.Contains(t, va, "vader")
	assert.Equal(t, 0.5, va["roberta"].(map[string]any)["roberta_pos"])

	// whitespace is a transcript, only the empty string is missing
	code, body = f.post(t, "/api/analyze/transcript", `{"sessionId":"ghost","transcript":"   "}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "voiceAnalysis")
}

func TestAnalyzeQuestionResponse(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	code, body := f.post(t, "/api/analyze/question-response", `{"transcript":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Session ID required", body["error"])

	code, body = f.post(t, "/api/analyze/question-response",
		`{"interviewId":"i","questionId":"q9","transcript":"answer","responseScore":100}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q9", body["questionId"])
	scores := body["scores"].(map[string]any)
	assert.Equal(t, 100.0, scores["response"])
	assert.Equal(t, 50.0, scores["voiceTone"])
	assert.Equal(t, 50.0, scores["bodyLanguage"])
	assert.Equal(t, 75.0, scores["final"])
	assert.Equal(t, map[string]any{
		"responseWeight": "50%",
		"voiceWeight":    "25%",
		"bodyWeight":     "25%",
	}, body["breakdown"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)
	f.post(t, "/api/session/start", `{"sessionId":"a"}`)

	code, body, _ := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 1.0, body["active_sessions"])
	assert.Equal(t, map[string]any{"body_language": true, "roberta": true}, body["models"])
}

func uploadAudio(t *testing.T, url string, fields map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "answer.wav")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("RIFF"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/analyze/audio", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAnalyzeAudio(t *testing.T) {
	t.Parallel()

	off := newFixture(t, nil, nil)
	code, _ := uploadAudio(t, off.srv.URL, map[string]string{"sessionId": "s"})
	assert.Equal(t, http.StatusServiceUnavailable, code)

	failing := newFixture(t, nil, fakeTranscriber{err: errors.New("asr 500")})
	code, body := uploadAudio(t, failing.srv.URL, map[string]string{"sessionId": "s"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Transcription failed", body["error"])

	f := newFixture(t, nil, fakeTranscriber{text: "I enjoy teamwork."})
	code, _ = uploadAudio(t, f.srv.URL, map[string]string{"questionId": "q1"})
	assert.Equal(t, http.StatusBadRequest, code)

	f.post(t, "/api/session/start", `{"sessionId":"s"}`)
	code, body = uploadAudio(t, f.srv.URL, map[string]string{"interviewId": "s", "questionId": "q1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "I enjoy teamwork.", body["transcript"])

	st, ok := f.engine.Status("s")
	require.True(t, ok)
	require.Len(t, st.QuestionAnalyses, 1)
	assert.Equal(t, "q1", st.QuestionAnalyses[0].QuestionID)
}

func TestVideoFeed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, loopOpener{frame: testJPEG(t)}, nil)

	code, body, _ := f.get(t, "/api/video-feed/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Session not found", body["error"])

	f.post(t, "/api/session/start", `{"sessionId":"cam"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/video-feed/cam", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)
	assert.Equal(t, "frame", params["boundary"])

	mr := multipart.NewReader(resp.Body, "frame")
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	frame, err := io.ReadAll(part)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(frame))
	assert.NoError(t, err)

	// stopping the session ends the stream
	code, _ = f.post(t, "/api/session/stop", `{"sessionId":"cam"}`)
	require.Equal(t, http.StatusOK, code)
	for {
		if _, err = mr.NextPart(); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestLiveStatusWebsocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/session/live/s"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}

	f.post(t, "/api/session/start", `{"sessionId":"s"}`)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Active  bool                 `json:"active"`
		Results *orchestrator.Status `json:"results"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.True(t, msg.Active)
	require.NotNil(t, msg.Results)
	assert.Equal(t, "Not Detected", msg.Results.BodyLanguage)

	f.post(t, "/api/session/stop", `{"sessionId":"s"}`)
	for msg.Active {
		msg.Results = nil
		require.NoError(t, conn.ReadJSON(&msg))
	}
	assert.Nil(t, msg.Results)
}

func TestRequestIDAndCORS(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set(requestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func TestRecovererReturns500(t *testing.T) {
	t.Parallel()

	s := &Server{log: quietLogger()}
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestFlexID(t *testing.T) {
	t.Parallel()

	var req sessionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"sessionId":17,"questionId":2.5,"interviewId":null}`), &req))
	assert.Equal(t, "17", req.id())
	assert.Equal(t, flexID("2.5"), req.QuestionID)

	req = sessionRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"sessionId":"  ","interviewId":"iv"}`), &req))
	assert.Equal(t, "iv", req.id())

	assert.Error(t, json.Unmarshal([]byte(`{"sessionId":{}}`), &req))
}
