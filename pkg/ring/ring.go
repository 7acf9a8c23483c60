package ring

// Buffer is a fixed-capacity ring buffer of float64 samples.
// When full, pushing a new sample evicts the oldest one.
// Not safe for concurrent use; callers serialize access.
type Buffer struct {
	data  []float64
	head  int // index of the oldest sample
	count int
}

// New creates a buffer with the given capacity.
// Capacity must be positive; invalid values fall back to 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when full.
func (b *Buffer) Push(v float64) {
	if b.count < len(b.data) {
		b.data[(b.head+b.count)%len(b.data)] = v
		b.count++
		return
	}
	// Full: overwrite the oldest slot and advance head
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
}

// Reset discards all samples and seeds the buffer with a single value.
func (b *Buffer) Reset(seed float64) {
	b.head = 0
	b.count = 1
	b.data[0] = seed
}

// Clear discards all samples.
func (b *Buffer) Clear() {
	b.head = 0
	b.count = 0
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Values returns the samples in order, oldest first.
// The returned slice is a copy.
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.data[(b.head+i)%len(b.data)]
	}
	return out
}

// Last returns the newest sample, or 0 and false when empty.
func (b *Buffer) Last() (float64, bool) {
	if b.count == 0 {
		return 0, false
	}
	return b.data[(b.head+b.count-1)%len(b.data)], true
}

// Fill replaces the buffer contents with the given samples, oldest first.
// When len(values) exceeds capacity only the newest samples are kept.
func (b *Buffer) Fill(values []float64) {
	b.Clear()
	if len(values) > len(b.data) {
		values = values[len(values)-len(b.data):]
	}
	for _, v := range values {
		b.Push(v)
	}
}
