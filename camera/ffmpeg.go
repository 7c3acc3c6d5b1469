package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// FFMPEG captures MJPEG frames from a video device with ffmpeg.
type FFMPEG struct {
	cfg Config
}

func NewFFMPEG(cfg Config) *FFMPEG {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	return &FFMPEG{cfg: cfg}
}

func (c *FFMPEG) args() []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-framerate", strconv.Itoa(c.cfg.FPS),
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height))
	}
	args = append(args, "-i", c.cfg.Device)
	if c.cfg.Mirror {
		args = append(args, "-vf", "hflip")
	}
	return append(args, "-f", "image2pipe", "-c:v", "mjpeg", "-q:v", "5", "-")
}

// Open starts ffmpeg. The process is not tied to ctx; it lives until Close.
func (c *FFMPEG) Open(ctx context.Context) (Source, error) {
	cmd := exec.Command(c.cfg.Command, c.args()...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stderr.Trimmed())
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSource{
		frames:  newJPEGReader(stdout, c.cfg.MaxFrameBytes),
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		waitErr: waitErr,
		closed:  make(chan struct{}),
	}, nil
}

type ffmpegSource struct {
	frames *jpegReader
	stdout io.ReadCloser
	stderr *syncBuffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func (s *ffmpegSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-s.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	default:
	}

	data, err := s.frames.Next()
	if err != nil {
		select {
		case <-s.closed:
			return Frame{}, ErrClosed
		default:
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
			return Frame{}, fmt.Errorf("ffmpeg stream ended: %w: %s", io.EOF, s.stderr.Trimmed())
		}
		return Frame{}, err
	}
	return Frame{JPEG: data, CapturedAt: time.Now()}, nil
}

func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.closeErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.closeErr = normalizeStopErr(err)
			}
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// syncBuffer collects ffmpeg stderr while the process writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() > 16<<10 {
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *syncBuffer) Trimmed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
