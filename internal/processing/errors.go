package processing

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedChunk is reported when bytes that do not form a whole sample
	// stay buffered after the stream has ended.
	ErrMalformedChunk = errors.New("malformed chunk: trailing partial sample")
	// ErrDegenerateEpoch means the epoch carries no spectral power, so MNF and
	// MPF are undefined.
	ErrDegenerateEpoch = errors.New("degenerate epoch: zero spectral power")
	// ErrDegenerateBaseline means the fatigue A baseline is zero.
	ErrDegenerateBaseline = errors.New("degenerate baseline: zero mpf baseline")
	// ErrInsufficientData is returned when a computation is asked for before
	// enough samples, epochs or features exist.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidBand means a band-pass edge is not inside (0, fs/2).
	ErrInvalidBand = errors.New("invalid band")
)

// BandError carries the rejected band. It matches ErrInvalidBand.
type BandError struct {
	Low, High, SamplingFreq float64
}

func (e *BandError) Error() string {
	return fmt.Sprintf("[butterworth] band %v-%v Hz does not fit below nyquist of fs=%v Hz", e.Low, e.High, e.SamplingFreq)
}

func (e *BandError) Unwrap() error {
	return ErrInvalidBand
}
