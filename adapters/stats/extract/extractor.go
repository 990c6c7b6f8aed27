// Package extract derives physical metrics from raw torque/angle/time
// curves. Extraction is a pure function of the input curve; all state
// lives upstream in the carrier model.
package extract

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"screwdiag/domain/curve"
	"screwdiag/domain/features"
)

const (
	// snugFraction of peak torque marks the fastener engagement point
	snugFraction = 0.20
	// climbFraction of peak torque bounds the linear-climb regression window
	climbFraction = 0.80
	// minRegressionSamples below which the slope falls back to endpoints
	minRegressionSamples = 5
	// smoothingHalfWidth is the k in the centered difference T[i+k]-T[i-k]
	smoothingHalfWidth = 3
	// angleEpsilon guards slope denominators, in degrees
	angleEpsilon = 1e-6
)

// Extractor computes a FeatureVector from a validated curve
type Extractor struct{}

// NewExtractor creates a new feature extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract validates the curve and derives its metrics. Any ingress
// violation surfaces as core.ErrInvalidCurve.
func (e *Extractor) Extract(c curve.Curve) (features.Vector, error) {
	if err := c.Validate(); err != nil {
		return features.Vector{}, err
	}

	n := c.Len()
	peak, _ := stats.Max(c.Torque)
	monotonic := monotonicAngle(c.Angle)

	return features.Vector{
		PeakTorque:    peak,
		FinalAngle:    c.Angle[n-1],
		RigiditySlope: rigiditySlope(c.Torque, c.Angle, peak),
		TotalWork:     trapezoidalWork(c.Torque, monotonic),
		SlopeMin:      minimumSlope(c.Torque, c.Angle),
		Duration:      c.Time[n-1] - c.Time[0],
	}, nil
}

// monotonicAngle clamps any backward angle step to its predecessor so the
// work integral never accumulates negative spans from encoder jitter.
func monotonicAngle(angle []float64) []float64 {
	out := make([]float64, len(angle))
	copy(out, angle)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	return out
}

// trapezoidalWork integrates torque with respect to angle
func trapezoidalWork(torque, angle []float64) float64 {
	var work float64
	for i := 1; i < len(torque); i++ {
		work += 0.5 * (torque[i] + torque[i-1]) * (angle[i] - angle[i-1])
	}
	return work
}

// rigiditySlope fits dT/dtheta over the linear climb between the snug
// point and the sample where torque reaches climbFraction of peak. An
// ordinary least-squares fit is used when the window holds enough
// samples; otherwise the endpoint slope.
func rigiditySlope(torque, angle []float64, peak float64) float64 {
	snug := snugIndex(torque, peak)
	if snug < 0 {
		return 0
	}

	end := snug
	for i := snug; i < len(torque); i++ {
		end = i
		if torque[i] >= climbFraction*peak {
			break
		}
	}
	if end <= snug {
		return 0
	}

	if end-snug+1 < minRegressionSamples {
		denom := angle[end] - angle[snug]
		if denom < angleEpsilon && denom > -angleEpsilon {
			return 0
		}
		return (torque[end] - torque[snug]) / denom
	}

	_, slope := stat.LinearRegression(angle[snug:end+1], torque[snug:end+1], nil, false)
	return slope
}

// snugIndex locates the first sample where torque exceeds snugFraction of
// peak with a positive local slope. Returns -1 when the curve never engages.
func snugIndex(torque []float64, peak float64) int {
	threshold := snugFraction * peak
	for i := 0; i < len(torque)-1; i++ {
		if torque[i] > threshold && torque[i+1] > torque[i] {
			return i
		}
	}
	return -1
}

// minimumSlope computes the minimum of the smoothed centered-difference
// slope series. Indices whose angle span falls under angleEpsilon are
// skipped; a curve with no valid index reports zero.
func minimumSlope(torque, angle []float64) float64 {
	k := smoothingHalfWidth
	found := false
	min := 0.0
	for i := k; i < len(torque)-k; i++ {
		denom := angle[i+k] - angle[i-k]
		if denom < angleEpsilon {
			continue
		}
		slope := (torque[i+k] - torque[i-k]) / denom
		if !found || slope < min {
			min = slope
			found = true
		}
	}
	return min
}
