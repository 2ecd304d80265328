package session

import "github.com/ericfunman/boursicotor-sub000/internal/types"

// PriceBuffer is a fixed-capacity ring of recent bars. Once full, each push
// evicts the oldest bar. It is not safe for concurrent use; each session
// worker owns its buffer exclusively.
type PriceBuffer struct {
	bars  []types.Bar
	head  int
	count int
}

// NewPriceBuffer creates a buffer holding at most capacity bars.
func NewPriceBuffer(capacity int) *PriceBuffer {
	if capacity <= 0 {
		capacity = 1
	}

	return &PriceBuffer{bars: make([]types.Bar, capacity)}
}

// Push appends a bar, evicting the oldest when full.
func (b *PriceBuffer) Push(bar types.Bar) {
	b.bars[(b.head+b.count)%len(b.bars)] = bar

	if b.count < len(b.bars) {
		b.count++
	} else {
		b.head = (b.head + 1) % len(b.bars)
	}
}

// Len returns the number of bars currently held.
func (b *PriceBuffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *PriceBuffer) Cap() int {
	return len(b.bars)
}

// Full reports whether the buffer has reached capacity.
func (b *PriceBuffer) Full() bool {
	return b.count == len(b.bars)
}

// Bars returns the held bars in chronological order, oldest first.
func (b *PriceBuffer) Bars() []types.Bar {
	out := make([]types.Bar, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.bars[(b.head+i)%len(b.bars)]
	}

	return out
}
