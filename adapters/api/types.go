package api

import (
	"screwdiag/domain/core"
	"screwdiag/domain/curve"
	"screwdiag/domain/diagnosis"
)

// CurvePayload mirrors the wire shape of one hole's signal triple
type CurvePayload struct {
	Torque []float64 `json:"torque" binding:"required"`
	Angle  []float64 `json:"angle" binding:"required"`
	Time   []float64 `json:"time" binding:"required"`
}

// DiagnoseRequest maps carrier -> hole -> curve
type DiagnoseRequest map[string]map[string]CurvePayload

// ToDomain converts the wire payload into domain curves. Shape problems
// inside a curve are left for the extractor so each hole fails in
// isolation rather than rejecting the batch.
func (r DiagnoseRequest) ToDomain() map[core.CarrierID]map[core.HoleID]curve.Curve {
	out := make(map[core.CarrierID]map[core.HoleID]curve.Curve, len(r))
	for carrierID, holes := range r {
		domainHoles := make(map[core.HoleID]curve.Curve, len(holes))
		for holeID, c := range holes {
			domainHoles[core.HoleID(holeID)] = curve.Curve{
				Torque: c.Torque,
				Angle:  c.Angle,
				Time:   c.Time,
			}
		}
		out[core.CarrierID(carrierID)] = domainHoles
	}
	return out
}

// DiagnoseResponse maps carrier -> hole -> result
type DiagnoseResponse struct {
	BatchID core.BatchID                                        `json:"batch_id"`
	Results map[core.CarrierID]map[core.HoleID]diagnosis.Result `json:"results"`
}

// ErrorResponse carries a coded error back to the caller
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
