// Package rolling keeps the most recent readings of a signal and smooths them into a mean.
package rolling

// Neutral is the mean reported before any reading arrives.
const Neutral = 50.0

// Buffer is a fixed-capacity FIFO of float readings. It is not safe for
// concurrent use; owners guard it with their own lock.
type Buffer struct {
	values []float64
	head   int // index of the oldest reading once full
	full   bool
}

func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{values: make([]float64, 0, capacity)}
}

// Push appends v, evicting the oldest reading when the buffer is full.
func (b *Buffer) Push(v float64) {
	if !b.full {
		b.values = append(b.values, v)
		if len(b.values) == cap(b.values) {
			b.full = true
		}
		return
	}
	b.values[b.head] = v
	b.head = (b.head + 1) % len(b.values)
}

// Mean returns the arithmetic mean clamped to [0, 100], or Neutral when empty.
func (b *Buffer) Mean() float64 {
	if len(b.values) == 0 {
		return Neutral
	}
	sum := 0.0
	for _, v := range b.values {
		sum += v
	}
	return clamp(sum / float64(len(b.values)))
}

func (b *Buffer) Len() int { return len(b.values) }
func (b *Buffer) Cap() int { return cap(b.values) }

// Values returns a copy of the readings, oldest first.
func (b *Buffer) Values() []float64 {
	out := make([]float64, 0, len(b.values))
	out = append(out, b.values[b.head:]...)
	out = append(out, b.values[:b.head]...)
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
