package processing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleepywoodpecker/emg-goes-live/internal/config"
	"sleepywoodpecker/emg-goes-live/internal/processing"
)

func pushAll(t *testing.T, tr *processing.FatigueTrackerA, mpf ...float64) []float64 {
	t.Helper()
	var levels []float64
	for _, v := range mpf {
		level, ok, err := tr.Push(v)
		require.NoError(t, err)
		if ok {
			levels = append(levels, level)
		}
	}
	return levels
}

func TestFatigueAIncreasingMPFNeverFatigues(t *testing.T) {
	tr, err := processing.NewFatigueTrackerA(config.FatigueAConfig{Group: 3, Span: 6})
	require.NoError(t, err)

	mpf := make([]float64, 30)
	for i := range mpf {
		mpf[i] = 40 + float64(i)*0.5
	}

	levels := pushAll(t, tr, mpf...)
	require.Len(t, levels, 9)
	for _, l := range levels {
		assert.Zero(t, l)
	}
}

func TestFatigueADropFromPeak(t *testing.T) {
	tr, err := processing.NewFatigueTrackerA(config.FatigueAConfig{Group: 3, Span: 6})
	require.NoError(t, err)

	assert.Empty(t, pushAll(t, tr, 100, 100, 100, 90, 90))
	assert.Equal(t, []float64{10}, pushAll(t, tr, 90))
	assert.Equal(t, 100.0, tr.State().Baseline)
	assert.Equal(t, 3, tr.State().Cursor)

	assert.Equal(t, []float64{20}, pushAll(t, tr, 80, 80, 80))
	// a new peak moves the baseline up
	assert.Equal(t, []float64{0}, pushAll(t, tr, 110, 110, 110))
	assert.Equal(t, 110.0, tr.State().Baseline)
	assert.InDelta(t, 100.0/11, pushAll(t, tr, 100, 100, 100)[0], 1e-9)
}

func TestFatigueADegenerateBaseline(t *testing.T) {
	tr, err := processing.NewFatigueTrackerA(config.FatigueAConfig{Group: 2, Span: 4})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok, err := tr.Push(0)
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, ok, err := tr.Push(0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, processing.ErrDegenerateBaseline)
	// the cursor still advanced past the degenerate group
	assert.Equal(t, 2, tr.State().Cursor)
}

func TestFatigueAConfigValidation(t *testing.T) {
	_, err := processing.NewFatigueTrackerA(config.FatigueAConfig{Group: 4, Span: 3})
	assert.Error(t, err)
}

func bandSplitSource(n int, fs float64) *processing.Series[float64] {
	src := processing.NewSeries[float64]()
	for i := 0; i < n; i++ {
		ts := float64(i) / fs
		src.Append(2*math.Sin(2*math.Pi*40*ts) + math.Sin(2*math.Pi*200*ts))
	}
	return src
}

func newTrackerB(t *testing.T, group int, policy config.WindowPolicy) *processing.FatigueTrackerB {
	t.Helper()
	cfg := config.Default().FatigueB
	cfg.Group = group
	cfg.WindowPolicy = policy
	tr, err := processing.NewFatigueTrackerB(cfg, 800)
	require.NoError(t, err)
	return tr
}

func TestFatigueBEmitsZeroUntilIEMGRises(t *testing.T) {
	tr := newTrackerB(t, 3, config.WindowInitial)
	src := bandSplitSource(800, 800)

	var emitted []float64
	for _, v := range []float64{10, 12, 8, 9, 10, 11, 5, 5, 5} {
		index, ok, err := tr.Push(v, src)
		require.NoError(t, err)
		if ok {
			emitted = append(emitted, index)
		}
	}

	assert.Equal(t, []float64{0, 0, 0}, emitted)
	require.NotNil(t, tr.State().IEMGInitial)
	assert.Equal(t, 10.0, *tr.State().IEMGInitial)
	assert.Equal(t, 9, tr.State().Cursor)
}

func TestFatigueBTriggeredIndex(t *testing.T) {
	tr := newTrackerB(t, 1, config.WindowInitial)
	src := bandSplitSource(1600, 800)

	index, ok, err := tr.Push(100, src)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, index)

	index, ok, err = tr.Push(150, src)
	require.NoError(t, err)
	require.True(t, ok)
	// the 40 Hz component is twice as strong as the 200 Hz one
	assert.Greater(t, index, 0.0)

	again, err := tr.Index(src)
	require.NoError(t, err)
	assert.Equal(t, index, again)

	other := newTrackerB(t, 1, config.WindowInitial)
	fresh, err := other.Index(src)
	require.NoError(t, err)
	assert.Equal(t, index, fresh)
}

func TestFatigueBWindowPolicies(t *testing.T) {
	src := processing.NewSeries[float64]()
	src.Append(make([]float64, 800)...)
	src.Append(bandSplitSource(800, 800).Snapshot()...)

	initial, err := newTrackerB(t, 1, config.WindowInitial).Index(src)
	require.NoError(t, err)
	assert.Zero(t, initial)

	latest, err := newTrackerB(t, 1, config.WindowLatest).Index(src)
	require.NoError(t, err)
	assert.Greater(t, latest, 0.0)
}

func TestFatigueBNeedsAFullWindow(t *testing.T) {
	tr := newTrackerB(t, 1, config.WindowInitial)
	_, err := tr.Index(bandSplitSource(100, 800))
	assert.ErrorIs(t, err, processing.ErrInsufficientData)
}

func TestFatigueBRejectsBandsAboveNyquist(t *testing.T) {
	_, err := processing.NewFatigueTrackerB(config.Default().FatigueB, 500)
	assert.ErrorIs(t, err, processing.ErrInvalidBand)
}
