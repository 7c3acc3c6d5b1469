package orchestrator

import (
	"context"
	"sync"
)

// frameHub keeps only the latest frame of a session. Readers wait on notify,
// which is closed and replaced on every publish.
type frameHub struct {
	mu       sync.Mutex
	frame    []byte
	seq      uint64
	notify   chan struct{}
	closed   bool
	watchers int
}

func newFrameHub() *frameHub {
	return &frameHub{notify: make(chan struct{})}
}

func (h *frameHub) publish(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.frame = jpeg
	h.seq++
	close(h.notify)
	h.notify = make(chan struct{})
}

func (h *frameHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}

func (h *frameHub) watching() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.watchers > 0
}

func (h *frameHub) subscribe() *FrameStream {
	h.mu.Lock()
	h.watchers++
	seen := h.seq
	h.mu.Unlock()
	return &FrameStream{hub: h, seen: seen}
}

// FrameStream delivers a session's frames to one viewer. Frames published
// while the viewer is busy are skipped.
type FrameStream struct {
	hub  *frameHub
	seen uint64
	once sync.Once
}

// Next blocks until a newer frame exists. It returns ErrStreamClosed once the
// session stops and ctx.Err() when the viewer goes away.
func (fs *FrameStream) Next(ctx context.Context) ([]byte, error) {
	h := fs.hub
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrStreamClosed
		}
		if h.seq > fs.seen {
			fs.seen = h.seq
			frame := h.frame
			h.mu.Unlock()
			return frame, nil
		}
		wait := h.notify
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Close unregisters the viewer. Safe to call more than once.
func (fs *FrameStream) Close() {
	fs.once.Do(func() {
		fs.hub.mu.Lock()
		fs.hub.watchers--
		fs.hub.mu.Unlock()
	})
}
