package curve

import (
	"fmt"
	"math"

	"screwdiag/domain/core"
)

// MinSamples is the smallest curve length the extractor accepts.
const MinSamples = 10

// Curve holds the synchronized signal triple recorded for one fastening
// attempt at one hole: torque in N*m, angle in degrees, time in seconds.
type Curve struct {
	Torque []float64 `json:"torque"`
	Angle  []float64 `json:"angle"`
	Time   []float64 `json:"time"`
}

// Len returns the number of samples in the curve
func (c Curve) Len() int {
	return len(c.Torque)
}

// Validate enforces the ingress invariants: equal sequence lengths,
// at least MinSamples samples, every value finite, and strictly
// increasing time samples.
func (c Curve) Validate() error {
	n := len(c.Torque)
	if len(c.Angle) != n || len(c.Time) != n {
		return core.NewInvalidCurveError(fmt.Sprintf(
			"sequence length mismatch: torque=%d angle=%d time=%d",
			len(c.Torque), len(c.Angle), len(c.Time)))
	}
	if n < MinSamples {
		return core.NewInvalidCurveError(fmt.Sprintf("curve too short: %d samples, need %d", n, MinSamples))
	}
	for i := 0; i < n; i++ {
		if !isFinite(c.Torque[i]) {
			return core.NewInvalidCurveError(fmt.Sprintf("non-finite torque at index %d", i))
		}
		if !isFinite(c.Angle[i]) {
			return core.NewInvalidCurveError(fmt.Sprintf("non-finite angle at index %d", i))
		}
		if !isFinite(c.Time[i]) {
			return core.NewInvalidCurveError(fmt.Sprintf("non-finite time at index %d", i))
		}
		if i > 0 && c.Time[i] <= c.Time[i-1] {
			return core.NewInvalidCurveError(fmt.Sprintf("time not strictly increasing at index %d", i))
		}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
