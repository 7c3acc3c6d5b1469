package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Reporter persists the final result of a stopped session.
type Reporter interface {
	Save(ctx context.Context, res FinalResult) error
}

// FileReporter writes one indented report.json per session under Dir.
type FileReporter struct {
	Dir string
}

func NewFileReporter(dir string) *FileReporter {
	return &FileReporter{Dir: dir}
}

func (r *FileReporter) Save(_ context.Context, res FinalResult) error {
	at := res.StoppedAt
	if at.IsZero() {
		at = time.Now()
	}
	dir, err := mkSessionDir(r.Dir, res.SessionID, at)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "report.json"), res)
}

// MultiReporter fans a report out to every sink and joins their errors.
type MultiReporter []Reporter

func (m MultiReporter) Save(ctx context.Context, res FinalResult) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Save(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func mkSessionDir(outputsRoot, sessionID string, at time.Time) (string, error) {
	name := safeName(sessionID) + "_" + at.Format("20060102-150405")
	dir := filepath.Join(outputsRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// safeName keeps caller-supplied ids from escaping the reports directory.
func safeName(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	if clean == "" {
		return "session"
	}
	return clean
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return encodeAndClose(f, v)
}

// encodeAndClose reports a failed close so a truncated report is not taken as saved.
func encodeAndClose(wc io.WriteCloser, v any) error {
	enc := json.NewEncoder(wc)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
