package features

// Metric identifies one derived fastening metric
type Metric string

const (
	MetricPeakTorque    Metric = "peak_torque"
	MetricFinalAngle    Metric = "final_angle"
	MetricRigiditySlope Metric = "rigidity_slope"
	MetricTotalWork     Metric = "total_work"
	MetricSlopeMin      Metric = "slope_min"
	MetricDuration      Metric = "duration"
)

// Tracked returns the metrics that feed the per-hole rolling statistics,
// in their canonical order. Order matters for deterministic iteration.
func Tracked() []Metric {
	return []Metric{MetricPeakTorque, MetricRigiditySlope, MetricTotalWork}
}

// Vector contains the physical metrics derived from one curve
type Vector struct {
	PeakTorque    float64 `json:"peak_torque"`    // max torque, N*m
	FinalAngle    float64 `json:"final_angle"`    // last angle sample, degrees
	RigiditySlope float64 `json:"rigidity_slope"` // dT/dtheta over the linear climb
	TotalWork     float64 `json:"total_work"`     // trapezoidal integral of T d(theta)
	SlopeMin      float64 `json:"slope_min"`      // minimum smoothed dT/dtheta
	Duration      float64 `json:"duration"`       // last time - first time, seconds
}

// Get returns the value of a tracked metric by name
func (v Vector) Get(m Metric) float64 {
	switch m {
	case MetricPeakTorque:
		return v.PeakTorque
	case MetricFinalAngle:
		return v.FinalAngle
	case MetricRigiditySlope:
		return v.RigiditySlope
	case MetricTotalWork:
		return v.TotalWork
	case MetricSlopeMin:
		return v.SlopeMin
	case MetricDuration:
		return v.Duration
	}
	return 0
}
