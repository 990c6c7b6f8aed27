// Package adaptive implements the statistical half of the decision fabric:
// per-hole lifecycle stepping, z-score classification against the golden
// base, concept-drift detection over the bounded window, and the
// closed-loop optimization suggestion.
package adaptive

import (
	"math"

	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/domain/diagnosis"
	"screwdiag/domain/features"
	"screwdiag/internal"
	"screwdiag/internal/config"
)

// driftWindowFill is the minimum window fill ratio before a drift test runs
const driftWindowFill = 2.0 / 3.0

// recoveryStreakTarget passing drift tests return a drifted hole to golden
const recoveryStreakTarget = 2

// Outcome is the statistical layer's contribution to a diagnosis
type Outcome struct {
	Status     diagnosis.Status
	ECodes     []diagnosis.ECode
	RCodes     []diagnosis.RCode
	Suggestion *diagnosis.OptimizationSuggestion
}

// Layer mutates hole state as observations arrive and classifies them
type Layer struct {
	tolerance config.ToleranceConfig
	learning  config.LearningConfig
	disabledE map[diagnosis.ECode]bool
	disabledR map[diagnosis.RCode]bool
	log       *internal.Logger
}

// NewLayer creates an adaptive layer from the tolerance and lifecycle config
func NewLayer(tolerance config.ToleranceConfig, learning config.LearningConfig, codes config.CodesConfig, logger *internal.Logger) *Layer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	l := &Layer{
		tolerance: tolerance,
		learning:  learning,
		disabledE: make(map[diagnosis.ECode]bool, len(codes.DisabledECodes)),
		disabledR: make(map[diagnosis.RCode]bool, len(codes.DisabledRCodes)),
		log:       logger,
	}
	for _, e := range codes.DisabledECodes {
		l.disabledE[diagnosis.ECode(e)] = true
	}
	for _, r := range codes.DisabledRCodes {
		l.disabledR[diagnosis.RCode(r)] = true
	}
	return l
}

// Observe folds one feature vector into the hole state, steps the
// lifecycle, evaluates drift, and classifies the observation. Lifecycle
// transitions happen before classification so the count reflects the
// current observation.
func (l *Layer) Observe(carrierID core.CarrierID, holeID core.HoleID, h *carrier.HoleState, fv features.Vector, now core.Timestamp) Outcome {
	for _, m := range features.Tracked() {
		h.Metrics[m].Observe(fv.Get(m))
	}
	h.LastUpdate = now

	logger := l.log.With(carrierID, holeID)
	l.stepLifecycle(logger, h)
	l.evaluateDrift(logger, h)

	out := l.classify(h, fv)
	if h.Phase == carrier.PhaseDriftDetected {
		out.Suggestion = l.buildSuggestion(h)
	}
	return out
}

// stepLifecycle advances cold_start -> shadow -> golden_locked as the
// observation count crosses the configured thresholds. The golden base is
// snapshotted from the running accumulators at the moment of lock.
func (l *Layer) stepLifecycle(logger *internal.Logger, h *carrier.HoleState) {
	count := h.Count()
	if h.Phase == carrier.PhaseColdStart && count >= int64(l.learning.ShadowThreshold) {
		h.Phase = carrier.PhaseShadow
		logger.Debug("entered shadow at count %d", count)
	}
	if h.Phase == carrier.PhaseShadow && count >= int64(l.learning.GoldenThreshold) {
		h.GoldenBase = make(carrier.GoldenBase, len(features.Tracked()))
		for _, m := range features.Tracked() {
			acc := h.Metrics[m]
			h.GoldenBase[m] = carrier.GoldenStat{Mean: acc.Mean, Std: acc.Std()}
		}
		h.Phase = carrier.PhaseGoldenLocked
		logger.Info("locked golden base at count %d", count)
	}
}

// evaluateDrift runs the window-vs-golden drift test for holes past the
// golden lock. A locked hole that drifts moves to drift_detected; a
// drifted hole that passes the test twice in a row recovers.
func (l *Layer) evaluateDrift(logger *internal.Logger, h *carrier.HoleState) {
	if h.GoldenBase == nil {
		return
	}
	if h.Phase != carrier.PhaseGoldenLocked && h.Phase != carrier.PhaseDriftDetected {
		return
	}
	if h.Metrics[features.MetricPeakTorque].WindowFill() < driftWindowFill {
		return
	}

	drifted := l.anyMetricDrifted(h)
	switch h.Phase {
	case carrier.PhaseGoldenLocked:
		if drifted {
			h.Phase = carrier.PhaseDriftDetected
			h.DriftEventCount++
			h.RecoveryStreak = 0
			logger.Warn("drift detected (event %d)", h.DriftEventCount)
		}
	case carrier.PhaseDriftDetected:
		if drifted {
			h.RecoveryStreak = 0
			return
		}
		h.RecoveryStreak++
		if h.RecoveryStreak >= recoveryStreakTarget {
			h.Phase = carrier.PhaseGoldenLocked
			h.RecoveryStreak = 0
			logger.Info("recovered to golden lock")
		}
	}
}

// anyMetricDrifted applies the two drift criteria to every tracked metric
func (l *Layer) anyMetricDrifted(h *carrier.HoleState) bool {
	for _, m := range features.Tracked() {
		gb := h.GoldenBase[m]
		std := l.flooredStd(gb.Std)
		wMean, wStd := h.Metrics[m].WindowStats()
		if math.Abs(wMean-gb.Mean) > l.tolerance.DriftMeanFactor*std {
			return true
		}
		if wStd > l.tolerance.DriftStdFactor*std {
			return true
		}
	}
	return false
}

// classify compares the current observation against the golden base.
// Holes without enough history are always statistically OK; the physics
// layer alone can fail them.
func (l *Layer) classify(h *carrier.HoleState, fv features.Vector) Outcome {
	out := Outcome{Status: diagnosis.StatusOK}
	if h.Phase != carrier.PhaseGoldenLocked && h.Phase != carrier.PhaseDriftDetected {
		return out
	}

	for _, m := range features.Tracked() {
		gb := h.GoldenBase[m]
		z := (fv.Get(m) - gb.Mean) / l.flooredStd(gb.Std)
		if math.Abs(z) <= l.tolerance.ProductionToleranceFactor {
			continue
		}
		code, ok := diagnosis.AnomalyCodeFor(m)
		if !ok || l.disabledE[code] {
			continue
		}
		out.Status = diagnosis.StatusNG
		out.ECodes = append(out.ECodes, code)
		if rc, ok := diagnosis.RCodeFor(code); ok && !l.disabledR[rc] {
			out.RCodes = append(out.RCodes, rc)
		}
	}
	return out
}

// buildSuggestion derives the closed-loop parameter adjustments from the
// torque window's deviation from the golden base. Torque recentering is
// clamped to +/-15 percent; speed is cut when the window std exceeds
// DriftStdFactor golden stds.
func (l *Layer) buildSuggestion(h *carrier.HoleState) *diagnosis.OptimizationSuggestion {
	gb := h.GoldenBase[features.MetricPeakTorque]
	wMean, wStd := h.Metrics[features.MetricPeakTorque].WindowStats()

	var torqueAdj float64
	if math.Abs(gb.Mean) > l.tolerance.SigmaFloor {
		torqueAdj = -100 * (wMean - gb.Mean) / gb.Mean
	}
	torqueAdj = math.Round(torqueAdj*10) / 10
	if torqueAdj > 15.0 {
		torqueAdj = 15.0
	}
	if torqueAdj < -15.0 {
		torqueAdj = -15.0
	}

	speedAdj := 0
	if wStd/l.flooredStd(gb.Std) > l.tolerance.DriftStdFactor {
		speedAdj = -10
	}

	return diagnosis.NewOptimizationSuggestion(diagnosis.SuggestionParams{
		SuggestedTorqueAdjustmentPercent: torqueAdj,
		SuggestedSpeedAdjustmentPercent:  speedAdj,
	})
}

func (l *Layer) flooredStd(std float64) float64 {
	return math.Max(std, l.tolerance.SigmaFloor)
}
