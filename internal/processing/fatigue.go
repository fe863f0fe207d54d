package processing

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"sleepywoodpecker/emg-goes-live/internal/config"
)

// FatiguePoint is one fatigue value together with the index of the feature
// record whose arrival produced it.
type FatiguePoint struct {
	Feature int     `json:"feature"`
	Value   float64 `json:"value"`
}

// SampleSource gives read access to the raw sample sequence.
type SampleSource interface {
	Len() int
	Range(from, to int) []float64
}

type FatigueAState struct {
	Baseline            float64
	BaselineInitialized bool
	Cursor              int
}

// FatigueTrackerA scores fatigue as the percentage drop of the recent mean
// MPF below the best (highest) group mean seen so far.
type FatigueTrackerA struct {
	group int
	span  int
	mpf   []float64
	state FatigueAState
}

func NewFatigueTrackerA(cfg config.FatigueAConfig) (*FatigueTrackerA, error) {
	if cfg.Group <= 0 || cfg.Span < cfg.Group {
		return nil, fmt.Errorf("[fatigueA] need 0 < group <= span, got %d/%d", cfg.Group, cfg.Span)
	}
	return &FatigueTrackerA{group: cfg.Group, span: cfg.Span}, nil
}

// Push records a new MPF value. ok is false when no evaluation was due.
func (t *FatigueTrackerA) Push(mpf float64) (level float64, ok bool, err error) {
	t.mpf = append(t.mpf, mpf)
	if len(t.mpf) < t.span+t.state.Cursor {
		return 0, false, nil
	}

	if !t.state.BaselineInitialized {
		t.state.Baseline = stat.Mean(t.mpf[:t.group], nil)
		t.state.BaselineInitialized = true
	}

	t.state.Cursor += t.group
	avg := stat.Mean(t.mpf[len(t.mpf)-t.group:], nil)
	if avg >= t.state.Baseline {
		t.state.Baseline = avg
	}

	if t.state.Baseline == 0 {
		return 0, false, ErrDegenerateBaseline
	}
	return (t.state.Baseline - avg) / t.state.Baseline * 100, true, nil
}

func (t *FatigueTrackerA) State() FatigueAState {
	return t.state
}

type FatigueBState struct {
	IEMGInitial *float64
	Cursor      int
}

// FatigueTrackerB watches the group mean of IEMG. Once it rises above the
// first group mean, the raw signal is split into a low and a high band and
// the fatigue index is the difference of their mean spectral amplitudes.
// Groups that do not exceed the initial value yield 0.
type FatigueTrackerB struct {
	group       int
	window      int
	policy      config.WindowPolicy
	low, high   *BandPass
	transformer *Transformer

	iemg  []float64
	state FatigueBState
}

func NewFatigueTrackerB(cfg config.FatigueBConfig, samplingFreq float64) (*FatigueTrackerB, error) {
	if cfg.Group <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("[fatigueB] group and window must be positive, got %d/%d", cfg.Group, cfg.Window)
	}
	low, err := NewButterworthBandPass(cfg.Order, cfg.LowBand.Low, cfg.LowBand.High, samplingFreq)
	if err != nil {
		return nil, fmt.Errorf("low band: %w", err)
	}
	high, err := NewButterworthBandPass(cfg.Order, cfg.HighBand.Low, cfg.HighBand.High, samplingFreq)
	if err != nil {
		return nil, fmt.Errorf("high band: %w", err)
	}

	return &FatigueTrackerB{
		group:       cfg.Group,
		window:      cfg.Window,
		policy:      cfg.WindowPolicy,
		low:         low,
		high:        high,
		transformer: NewTransformer(samplingFreq),
	}, nil
}

// Push records a new IEMG value and evaluates once a full group is
// available. ok is false when no evaluation was due.
func (t *FatigueTrackerB) Push(iemg float64, samples SampleSource) (index float64, ok bool, err error) {
	t.iemg = append(t.iemg, iemg)
	if len(t.iemg) < t.group+t.state.Cursor {
		return 0, false, nil
	}

	current := stat.Mean(t.iemg[len(t.iemg)-t.group:], nil)
	t.state.Cursor += t.group

	if t.state.IEMGInitial == nil {
		initial := current
		t.state.IEMGInitial = &initial
	}
	if current <= *t.state.IEMGInitial {
		return 0, true, nil
	}

	index, err = t.Index(samples)
	if err != nil {
		return 0, false, err
	}
	return index, true, nil
}

// Index band-splits the configured raw window and returns ima_low - ima_high.
func (t *FatigueTrackerB) Index(samples SampleSource) (float64, error) {
	n := samples.Len()
	if n < t.window {
		return 0, fmt.Errorf("%w: band split needs %d samples, have %d", ErrInsufficientData, t.window, n)
	}

	from := 0
	if t.policy == config.WindowLatest {
		from = n - t.window
	}
	x := samples.Range(from, from+t.window)

	lfc := t.transformer.Transform(t.low.FiltFilt(x), true)
	hfc := t.transformer.Transform(t.high.FiltFilt(x), true)

	return lfc.MeanAmplitude() - hfc.MeanAmplitude(), nil
}

func (t *FatigueTrackerB) State() FatigueBState {
	return t.state
}
