// Package testkit generates deterministic synthetic fastening curves for
// the test suite. Everything here is seeded; two kits built with the same
// seed emit identical curves.
package testkit

import (
	"math"
	"math/rand"

	"screwdiag/domain/curve"
)

// DefaultSamples per generated curve
const DefaultSamples = 60

// Kit produces synthetic curves from a seeded RNG
type Kit struct {
	rng *rand.Rand
}

// NewKit creates a test kit with a fixed seed
func NewKit(seed int64) *Kit {
	return &Kit{rng: rand.New(rand.NewSource(seed))}
}

// CurveOpts parameterizes a synthetic fastening curve
type CurveOpts struct {
	Samples    int     // number of samples, DefaultSamples when zero
	PeakTorque float64 // target peak torque, N*m
	Noise      float64 // gaussian sigma applied to the realized peak
	FinalAngle float64 // total rotation, degrees (360 when zero)
}

func (o CurveOpts) withDefaults() CurveOpts {
	if o.Samples == 0 {
		o.Samples = DefaultSamples
	}
	if o.FinalAngle == 0 {
		o.FinalAngle = 360
	}
	return o
}

// Curve generates a plausible fastening ramp: torque climbs monotonically
// toward the realized peak with a power profile while angle and time
// advance uniformly. Run-to-run variation enters through the realized
// peak, which scales the whole ramp, so every derived metric carries a
// clean gaussian spread across a batch of curves.
func (k *Kit) Curve(opts CurveOpts) curve.Curve {
	o := opts.withDefaults()
	peak := o.PeakTorque
	if o.Noise > 0 {
		peak += k.rng.NormFloat64() * o.Noise
	}

	n := o.Samples
	c := curve.Curve{
		Torque: make([]float64, n),
		Angle:  make([]float64, n),
		Time:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n-1)
		c.Angle[i] = progress * o.FinalAngle
		c.Time[i] = float64(i) * 0.01
		c.Torque[i] = peak * math.Pow(progress, 1.5)
	}
	return c
}

// NormalCurve is a healthy fastening with peak ~5 N*m and mild noise
func (k *Kit) NormalCurve() curve.Curve {
	return k.Curve(CurveOpts{PeakTorque: 5.0, Noise: 0.02})
}

// ShiftedCurve is a healthy-shaped fastening whose peak sits at the given
// torque, used to synthesize drifted distributions.
func (k *Kit) ShiftedCurve(peak float64) curve.Curve {
	return k.Curve(CurveOpts{PeakTorque: peak, Noise: 0.02})
}

// NegativeSlopeCurve carries a pronounced torque collapse mid-tightening,
// violating the negative-slope physics constraint.
func (k *Kit) NegativeSlopeCurve() curve.Curve {
	c := k.Curve(CurveOpts{PeakTorque: 5.0})
	n := len(c.Torque)
	// Carve a dip after the climb: up to 2 N*m is subtracted over six
	// samples (about 37 degrees), so torque falls by roughly 1.4 N*m, far
	// past any plausible measurement jitter.
	for i := n / 2; i < n/2+6 && i < n; i++ {
		c.Torque[i] -= 2.0 * float64(i-n/2+1) / 6.0
	}
	return c
}

// ConstantCurve holds torque flat, exercising zero-variance handling
func (k *Kit) ConstantCurve(level float64) curve.Curve {
	n := DefaultSamples
	c := curve.Curve{
		Torque: make([]float64, n),
		Angle:  make([]float64, n),
		Time:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		c.Torque[i] = level
		c.Angle[i] = float64(i) * 6
		c.Time[i] = float64(i) * 0.01
	}
	return c
}

// InvalidCurve has mismatched sequence lengths
func (k *Kit) InvalidCurve() curve.Curve {
	c := k.NormalCurve()
	c.Angle = c.Angle[:len(c.Angle)-3]
	return c
}
