package processing

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
)

// Biquad is one second-order section in transposed direct form II, with a0
// normalised to 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

func (q Biquad) dcGain() float64 {
	return (q.B0 + q.B1 + q.B2) / (1 + q.A1 + q.A2)
}

// BandPass is a digital Butterworth band-pass filter stored as a cascade of
// second-order sections.
type BandPass struct {
	Low, High    float64
	SamplingFreq float64
	Order        int
	Sections     []Biquad
}

// NewButterworthBandPass designs an order-N Butterworth band-pass between
// low and high Hz via the bilinear transform with pre-warped band edges.
// The resulting filter has 2N poles, N zeros at z=1 and N zeros at z=-1.
func NewButterworthBandPass(order int, low, high, samplingFreq float64) (*BandPass, error) {
	if order <= 0 {
		return nil, fmt.Errorf("[butterworth] order must be positive, got %d", order)
	}
	if low <= 0 || high <= low || high >= samplingFreq/2 {
		return nil, &BandError{Low: low, High: high, SamplingFreq: samplingFreq}
	}

	fs2 := 2 * samplingFreq
	warpedLow := fs2 * math.Tan(math.Pi*low/samplingFreq)
	warpedHigh := fs2 * math.Tan(math.Pi*high/samplingFreq)
	bw := warpedHigh - warpedLow
	w0sq := complex(warpedLow*warpedHigh, 0)

	// analog low-pass prototype, shifted to the band and mapped to z
	poles := make([]complex128, 0, 2*order)
	for m := -order + 1; m < order; m += 2 {
		p := -cmplx.Exp(complex(0, math.Pi*float64(m)/float64(2*order)))
		p *= complex(bw/2, 0)
		d := cmplx.Sqrt(p*p - w0sq)
		poles = append(poles, p+d, p-d)
	}

	denom := complex(1, 0)
	for i, p := range poles {
		denom *= complex(fs2, 0) - p
		poles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
	}
	gain := real(complex(math.Pow(bw*fs2, float64(order)), 0) / denom)

	sections, err := pairPoles(poles)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		sections[i].B0, sections[i].B2 = 1, -1
	}
	sections[0].B0 *= gain
	sections[0].B2 *= gain

	return &BandPass{
		Low:          low,
		High:         high,
		SamplingFreq: samplingFreq,
		Order:        order,
		Sections:     sections,
	}, nil
}

func pairPoles(poles []complex128) ([]Biquad, error) {
	var sections []Biquad
	var reals []float64

	for _, p := range poles {
		tol := 1e-12 * math.Max(1, cmplx.Abs(p))
		switch {
		case math.Abs(imag(p)) <= tol:
			reals = append(reals, real(p))
		case imag(p) > 0:
			sections = append(sections, Biquad{A1: -2 * real(p), A2: real(p)*real(p) + imag(p)*imag(p)})
		}
	}
	if len(reals)%2 != 0 || 2*len(sections)+len(reals) != len(poles) {
		return nil, fmt.Errorf("[butterworth] poles do not form conjugate pairs: %v", poles)
	}

	slices.Sort(reals)
	for i := 0; i < len(reals); i += 2 {
		sections = append(sections, Biquad{A1: -(reals[i] + reals[i+1]), A2: reals[i] * reals[i+1]})
	}
	return sections, nil
}

// Gain is the magnitude response at freq Hz.
func (bp *BandPass) Gain(freq float64) float64 {
	zInv := cmplx.Exp(complex(0, -2*math.Pi*freq/bp.SamplingFreq))
	h := complex(1, 0)
	for _, q := range bp.Sections {
		num := complex(q.B0, 0) + complex(q.B1, 0)*zInv + complex(q.B2, 0)*zInv*zInv
		den := 1 + complex(q.A1, 0)*zInv + complex(q.A2, 0)*zInv*zInv
		h *= num / den
	}
	return cmplx.Abs(h)
}

// steadyState returns the section states that a unit step settles into.
func (bp *BandPass) steadyState() [][2]float64 {
	zi := make([][2]float64, len(bp.Sections))
	scale := 1.0
	for i, q := range bp.Sections {
		g := q.dcGain()
		z2 := scale * (q.B2 - q.A2*g)
		z1 := scale*(q.B1-q.A1*g) + z2
		zi[i] = [2]float64{z1, z2}
		scale *= g
	}
	return zi
}

func (bp *BandPass) run(x []float64, zi [][2]float64, x0 float64) {
	for i, q := range bp.Sections {
		z1, z2 := zi[i][0]*x0, zi[i][1]*x0
		for n, in := range x {
			out := q.B0*in + z1
			z1 = q.B1*in - q.A1*out + z2
			z2 = q.B2*in - q.A2*out
			x[n] = out
		}
	}
}

// Filter runs the cascade forward once, starting from rest.
func (bp *BandPass) Filter(x []float64) []float64 {
	y := slices.Clone(x)
	bp.run(y, make([][2]float64, len(bp.Sections)), 0)
	return y
}

// FiltFilt applies the filter forward and then backward for zero phase
// distortion. The input is padded with an odd extension at both ends and each
// pass starts in the steady state matching its first sample.
func (bp *BandPass) FiltFilt(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		return slices.Clone(x)
	}

	padlen := 3 * (2*len(bp.Sections) + 1)
	if padlen > n-1 {
		padlen = n - 1
	}

	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i > 0; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := bp.steadyState()
	bp.run(ext, zi, ext[0])
	slices.Reverse(ext)
	bp.run(ext, zi, ext[0])
	slices.Reverse(ext)

	return slices.Clone(ext[padlen : padlen+n])
}
