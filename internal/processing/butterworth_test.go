package processing_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleepywoodpecker/emg-goes-live/internal/processing"
)

// centre returns the digital frequency the analog band centre maps to.
func centre(low, high, fs float64) float64 {
	wl := 2 * fs * math.Tan(math.Pi*low/fs)
	wh := 2 * fs * math.Tan(math.Pi*high/fs)
	return fs / math.Pi * math.Atan(math.Sqrt(wl*wh)/(2*fs))
}

func TestButterworthResponse(t *testing.T) {
	tests := []struct {
		order     int
		low, high float64
		fs        float64
	}{
		{4, 25, 79, 800},
		{4, 80, 350, 800},
		{3, 20, 90, 500},
		{2, 5, 40, 200},
	}

	for _, tt := range tests {
		bp, err := processing.NewButterworthBandPass(tt.order, tt.low, tt.high, tt.fs)
		require.NoError(t, err)
		require.Len(t, bp.Sections, tt.order)

		assert.InDelta(t, 1, bp.Gain(centre(tt.low, tt.high, tt.fs)), 1e-6)
		assert.InDelta(t, 1/math.Sqrt2, bp.Gain(tt.low), 1e-6)
		assert.InDelta(t, 1/math.Sqrt2, bp.Gain(tt.high), 1e-6)
		assert.InDelta(t, 0, bp.Gain(0), 1e-9)
		assert.InDelta(t, 0, bp.Gain(tt.fs/2), 1e-9)
	}
}

func TestButterworthRejectsBadBands(t *testing.T) {
	_, err := processing.NewButterworthBandPass(4, 80, 350, 500)
	require.ErrorIs(t, err, processing.ErrInvalidBand)

	var bandErr *processing.BandError
	require.True(t, errors.As(err, &bandErr))
	assert.Equal(t, 350.0, bandErr.High)

	_, err = processing.NewButterworthBandPass(4, 79, 25, 800)
	assert.ErrorIs(t, err, processing.ErrInvalidBand)
	_, err = processing.NewButterworthBandPass(0, 25, 79, 800)
	assert.Error(t, err)
}

func TestFiltFiltIsZeroPhase(t *testing.T) {
	const fs = 800.0
	bp, err := processing.NewButterworthBandPass(4, 25, 79, fs)
	require.NoError(t, err)

	f0 := centre(25, 79, fs)
	x := make([]float64, 1600)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * f0 * float64(i) / fs)
	}

	y := bp.FiltFilt(x)
	require.Len(t, y, len(x))
	for i := 400; i < 1200; i++ {
		require.InDelta(t, x[i], y[i], 1e-3, "sample %d", i)
	}
}

func TestFiltFiltRemovesOutOfBand(t *testing.T) {
	const fs = 800.0
	bp, err := processing.NewButterworthBandPass(4, 80, 350, fs)
	require.NoError(t, err)

	x := make([]float64, 1600)
	for i := range x {
		x[i] = 5*math.Sin(2*math.Pi*10*float64(i)/fs) + 3
	}

	y := bp.FiltFilt(x)
	for i := 400; i < 1200; i++ {
		require.InDelta(t, 0, y[i], 1e-2, "sample %d", i)
	}
}

func TestFiltFiltShortInput(t *testing.T) {
	bp, err := processing.NewButterworthBandPass(4, 25, 79, 800)
	require.NoError(t, err)

	assert.Equal(t, []float64{2}, bp.FiltFilt([]float64{2}))
	assert.Len(t, bp.FiltFilt(make([]float64, 10)), 10)
}

func TestFilterSettlesToGain(t *testing.T) {
	const fs = 800.0
	bp, err := processing.NewButterworthBandPass(4, 25, 79, fs)
	require.NoError(t, err)

	for _, f := range []float64{30, 50, 100} {
		x := make([]float64, 3200)
		for i := range x {
			x[i] = math.Sin(2 * math.Pi * f * float64(i) / fs)
		}
		y := bp.Filter(x)
		require.Len(t, y, len(x))
		assert.Equal(t, math.Sin(2*math.Pi*f/fs), x[1], "input must not be modified")

		peak := 0.0
		for _, v := range y[2800:] {
			peak = math.Max(peak, math.Abs(v))
		}
		assert.InDelta(t, bp.Gain(f), peak, 0.03, "%v Hz", f)
	}
}
