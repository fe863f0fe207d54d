package processing

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"sleepywoodpecker/emg-goes-live/internal/config"
)

// FeatureRecord holds the features of one completed epoch.
type FeatureRecord struct {
	Epoch int     `json:"epoch"`
	Start int     `json:"start"`
	RMS   float64 `json:"rms"`
	IEMG  float64 `json:"iemg"`
	MNF   float64 `json:"mnf"`
	MPF   float64 `json:"mpf"`
}

// Spectrum is a DFT restricted to a set of bins, with the frequency in Hz of
// every kept bin.
type Spectrum struct {
	Freqs  []float64
	Coeffs []complex128
}

// Power returns |X_k|^2 for every bin.
func (s Spectrum) Power() []float64 {
	power := make([]float64, len(s.Coeffs))
	for i, c := range s.Coeffs {
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}
	return power
}

// MeanAmplitude is sum(|X_k|) over the kept bins divided by their count.
// On a positive-only spectrum this is about half of what the BLE recording
// scripts reported, as they summed every bin but divided by the positive count.
func (s Spectrum) MeanAmplitude() float64 {
	if len(s.Coeffs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range s.Coeffs {
		sum += cmplx.Abs(c)
	}
	return sum / float64(len(s.Coeffs))
}

// Transformer computes DFTs and caches one FFT plan per input length. It is
// not safe for concurrent use.
type Transformer struct {
	samplingFreq float64
	plans        map[int]*fourier.CmplxFFT
}

func NewTransformer(samplingFreq float64) *Transformer {
	return &Transformer{
		samplingFreq: samplingFreq,
		plans:        make(map[int]*fourier.CmplxFFT),
	}
}

// Transform returns the DFT of x. With positiveOnly set only bins whose
// frequency is >= 0 are kept; bins from n/2 upwards count as negative.
func (t *Transformer) Transform(x []float64, positiveOnly bool) Spectrum {
	n := len(x)
	plan, ok := t.plans[n]
	if !ok {
		plan = fourier.NewCmplxFFT(n)
		t.plans[n] = plan
	}

	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeffs := plan.Coefficients(nil, seq)

	spec := Spectrum{
		Freqs:  make([]float64, 0, n),
		Coeffs: make([]complex128, 0, n),
	}
	for k, c := range coeffs {
		freq := plan.Freq(k) * t.samplingFreq
		if positiveOnly && freq < 0 {
			continue
		}
		spec.Freqs = append(spec.Freqs, freq)
		spec.Coeffs = append(spec.Coeffs, c)
	}
	return spec
}

type FeatureExtractor struct {
	transformer  *Transformer
	positiveOnly bool
}

func NewFeatureExtractor(samplingFreq float64, mode config.SpectrumMode) (*FeatureExtractor, error) {
	if samplingFreq <= 0 {
		return nil, fmt.Errorf("[features] sampling frequency must be positive, got %v", samplingFreq)
	}
	return &FeatureExtractor{
		transformer:  NewTransformer(samplingFreq),
		positiveOnly: mode != config.SpectrumFull,
	}, nil
}

// Extract computes RMS, IEMG, MNF and MPF of one epoch. A silent epoch yields
// ErrDegenerateEpoch and no record.
func (f *FeatureExtractor) Extract(epoch Epoch) (FeatureRecord, error) {
	x := epoch.Samples
	if len(x) == 0 {
		return FeatureRecord{}, fmt.Errorf("%w: empty epoch %d", ErrInsufficientData, epoch.Index)
	}

	spec := f.transformer.Transform(x, f.positiveOnly)
	mnf, mpf, err := SpectralFrequencies(spec)
	if err != nil {
		return FeatureRecord{}, fmt.Errorf("epoch %d at sample %d: %w", epoch.Index, epoch.Start, err)
	}

	return FeatureRecord{
		Epoch: epoch.Index,
		Start: epoch.Start,
		RMS:   RMS(x),
		IEMG:  IEMG(x),
		MNF:   mnf,
		MPF:   mpf,
	}, nil
}

func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

func IEMG(x []float64) float64 {
	return floats.Norm(x, 1)
}

// SpectralFrequencies returns the power-weighted mean frequency and the
// frequency of the first bin where cumulative power reaches half the total.
func SpectralFrequencies(spec Spectrum) (mnf, mpf float64, err error) {
	power := spec.Power()
	total := floats.Sum(power)
	if total == 0 || math.IsNaN(total) {
		return 0, 0, ErrDegenerateEpoch
	}

	mnf = floats.Dot(spec.Freqs, power) / total

	cumulative := make([]float64, len(power))
	floats.CumSum(cumulative, power)
	half := 0.5 * cumulative[len(cumulative)-1]
	for k, c := range cumulative {
		if c >= half {
			mpf = spec.Freqs[k]
			break
		}
	}

	return mnf, mpf, nil
}
