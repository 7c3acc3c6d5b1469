// Package camera produces JPEG frames from a webcam or a directory of stills.
package camera

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed        = errors.New("camera source closed")
	ErrFrameTooLarge = errors.New("jpeg frame exceeds size limit")
)

// Frame is one captured JPEG image.
type Frame struct {
	JPEG       []byte
	CapturedAt time.Time
}

// Source yields frames until closed. Close is idempotent and unblocks a
// pending Next.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Opener creates a fresh Source for each session.
type Opener interface {
	Open(ctx context.Context) (Source, error)
}

// Config describes the capture device.
type Config struct {
	Command       string
	InputFormat   string
	Device        string
	Width         int
	Height        int
	FPS           int
	Mirror        bool
	MaxFrameBytes int
}
