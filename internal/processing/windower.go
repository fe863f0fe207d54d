package processing

import (
	"fmt"

	"sleepywoodpecker/emg-goes-live/internal/config"
)

// Epoch is a contiguous slice of the sample sequence starting at Start.
type Epoch struct {
	Index   int
	Start   int
	Samples []float64
}

// End is the exclusive index one past the last sample.
func (e Epoch) End() int {
	return e.Start + len(e.Samples)
}

// Windower tracks where the next analysis epoch starts and ends. It only
// does cursor arithmetic; the caller owns the samples.
type Windower struct {
	length int
	stride int
	policy config.EpochPolicy

	start int
	end   int
	count int
}

func NewWindower(length, stride int, policy config.EpochPolicy) (*Windower, error) {
	if length <= 0 || stride <= 0 {
		return nil, fmt.Errorf("[windower] length and stride must be positive, got %d/%d", length, stride)
	}
	switch policy {
	case config.EpochSliding, config.EpochCumulative:
	default:
		return nil, fmt.Errorf("[windower] unknown epoch policy %q", policy)
	}

	return &Windower{
		length: length,
		stride: stride,
		policy: policy,
		end:    length,
	}, nil
}

// Next reports the bounds of the next epoch if available samples cover it,
// and advances the cursor when they do.
func (w *Windower) Next(available int) (start, end int, ok bool) {
	if available < w.end {
		return 0, 0, false
	}
	start, end = w.start, w.end

	w.start += w.stride
	switch w.policy {
	case config.EpochCumulative:
		w.end += w.start
	default:
		w.end = w.start + w.length
	}
	w.count++

	return start, end, true
}

// Cursor returns the bounds the next epoch will have.
func (w *Windower) Cursor() (start, end int) {
	return w.start, w.end
}

func (w *Windower) Count() int {
	return w.count
}
