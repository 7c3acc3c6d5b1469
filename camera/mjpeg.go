package camera

import (
	"bufio"
	"errors"
	"io"
)

const defaultMaxFrameBytes = 8 << 20

// jpegReader splits a concatenated MJPEG byte stream on SOI/EOI markers.
type jpegReader struct {
	r   *bufio.Reader
	max int
}

func newJPEGReader(r io.Reader, max int) *jpegReader {
	if max <= 0 {
		max = defaultMaxFrameBytes
	}
	return &jpegReader{r: bufio.NewReaderSize(r, 64<<10), max: max}
}

func (j *jpegReader) Next() ([]byte, error) {
	var prev byte
	for {
		b, err := j.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && b == 0xD8 {
			break
		}
		prev = b
	}

	buf := []byte{0xFF, 0xD8}
	prev = 0
	for {
		b, err := j.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf = append(buf, b)
		if prev == 0xFF && b == 0xD9 {
			return buf, nil
		}
		prev = b
		if len(buf) > j.max {
			return nil, ErrFrameTooLarge
		}
	}
}
