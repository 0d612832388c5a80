package shelf

// CountHistory is a fixed-capacity FIFO of per-frame counts. Once full, each
// Add evicts the oldest entry. The window grows from empty up to capacity
// without zero padding.
type CountHistory struct {
	counts   []int
	capacity int
	head     int // next write position
	size     int
	sum      int
}

// NewCountHistory creates a history holding at most capacity counts.
// A capacity below 1 is raised to 1.
func NewCountHistory(capacity int) *CountHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &CountHistory{
		counts:   make([]int, capacity),
		capacity: capacity,
	}
}

// Add appends n, evicting the oldest count when at capacity.
func (h *CountHistory) Add(n int) {
	if h.size == h.capacity {
		h.sum -= h.counts[h.head]
	} else {
		h.size++
	}
	h.counts[h.head] = n
	h.sum += n
	h.head = (h.head + 1) % h.capacity
}

// Len returns the number of retained counts.
func (h *CountHistory) Len() int { return h.size }

// Cap returns the window size.
func (h *CountHistory) Cap() int { return h.capacity }

// Sum returns the sum of retained counts.
func (h *CountHistory) Sum() int { return h.sum }

// Mean returns the arithmetic mean of the retained counts, or 0 when empty.
func (h *CountHistory) Mean() float64 {
	if h.size == 0 {
		return 0
	}
	return float64(h.sum) / float64(h.size)
}

// Values returns the retained counts, oldest first.
func (h *CountHistory) Values() []int {
	out := make([]int, h.size)
	start := (h.head - h.size + h.capacity) % h.capacity
	for i := 0; i < h.size; i++ {
		out[i] = h.counts[(start+i)%h.capacity]
	}
	return out
}
