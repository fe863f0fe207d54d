package processing

import (
	"sync"
)

// Series is an append-only sequence shared between the single pipeline
// writer and any number of readers. Readers only ever get copies, so an
// element is either fully visible or not there yet.
type Series[T any] struct {
	values []T
	mu     sync.RWMutex
}

func NewSeries[T any]() *Series[T] {
	return &Series[T]{}
}

func (s *Series[T]) Append(v ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values, v...)
}

func (s *Series[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

func (s *Series[T]) Last() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if len(s.values) == 0 {
		return zero, false
	}
	return s.values[len(s.values)-1], true
}

func (s *Series[T]) Snapshot() []T {
	return s.Range(0, -1)
}

// Range copies values[from:to]. A negative to means "up to the end"; both
// bounds are clamped to what is currently stored.
func (s *Series[T]) Range(from, to int) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.values)
	if to < 0 || to > n {
		to = n
	}
	if from < 0 {
		from = 0
	}
	if from >= to {
		return []T{}
	}

	out := make([]T, to-from)
	copy(out, s.values[from:to])
	return out
}
