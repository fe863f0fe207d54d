package processing

import "fmt"

// EnvelopeFilter is a moving average over the last N rectified samples,
// scaled by two. The running sum is kept incrementally and never recomputed.
type EnvelopeFilter struct {
	ring []float64
	sum  float64
	idx  int
}

func NewEnvelopeFilter(size int) (*EnvelopeFilter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("[envelope] buffer size must be positive, got %d", size)
	}
	return &EnvelopeFilter{ring: make([]float64, size)}, nil
}

// Push takes one absolute sample value and returns the envelope value for it.
func (e *EnvelopeFilter) Push(absValue float64) float64 {
	e.sum -= e.ring[e.idx]
	e.sum += absValue
	e.ring[e.idx] = absValue
	e.idx = (e.idx + 1) % len(e.ring)

	return (e.sum / float64(len(e.ring))) * 2
}
