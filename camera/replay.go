package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Replay loops over the JPEG files of a directory at a fixed frame rate. It
// stands in for a webcam on machines without one.
type Replay struct {
	dir string
	fps int
}

func NewReplay(dir string, fps int) *Replay {
	if fps <= 0 {
		fps = 15
	}
	return &Replay{dir: dir, fps: fps}
}

func (r *Replay) Open(_ context.Context) (Source, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir: %w", err)
	}

	var frames [][]byte
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".jpg" && ext != ".jpeg") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, fmt.Errorf("replay frame %s: %w", name, err)
		}
		frames = append(frames, data)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("replay dir %s: no jpeg frames", r.dir)
	}

	return &replaySource{
		frames:   frames,
		interval: time.Second / time.Duration(r.fps),
		closed:   make(chan struct{}),
	}, nil
}

type replaySource struct {
	frames   [][]byte
	interval time.Duration

	mu   sync.Mutex
	next int
	last time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *replaySource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	wait := time.Until(s.last.Add(s.interval))
	s.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.closed:
			return Frame{}, ErrClosed
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	} else {
		select {
		case <-s.closed:
			return Frame{}, ErrClosed
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	s.last = time.Now()
	return Frame{JPEG: data, CapturedAt: s.last}, nil
}

func (s *replaySource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
