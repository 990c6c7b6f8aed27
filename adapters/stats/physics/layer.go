// Package physics applies the hard deterministic constraint rules a
// fastening must satisfy regardless of learned statistics. Rules run in a
// fixed order and every violated rule is reported; nothing short-circuits.
package physics

import (
	"screwdiag/domain/diagnosis"
	"screwdiag/domain/features"
	"screwdiag/internal/config"
)

// Verdict is the outcome of the constraint battery for one feature vector
type Verdict struct {
	Pass   bool
	Fatal  bool // an enabled E_NEG_SLOPE fired; the observation must not be learned
	ECodes []diagnosis.ECode
	RCodes []diagnosis.RCode
}

// rule is one constraint: a predicate over the feature vector plus the
// codes it raises when violated.
type rule struct {
	code     diagnosis.ECode
	fatal    bool
	violated func(fv features.Vector, cfg config.PhysicsConfig) bool
}

// battery lists the rules in their fixed evaluation order
var battery = []rule{
	{
		code:  diagnosis.ECodeNegSlope,
		fatal: true,
		violated: func(fv features.Vector, cfg config.PhysicsConfig) bool {
			return fv.SlopeMin < cfg.NegSlopeThreshold
		},
	},
	{
		code: diagnosis.ECodeRigidity,
		violated: func(fv features.Vector, cfg config.PhysicsConfig) bool {
			return fv.RigiditySlope < cfg.SlopeMinAbs || fv.RigiditySlope > cfg.SlopeMaxAbs
		},
	},
	{
		code: diagnosis.ECodeTorqueRange,
		violated: func(fv features.Vector, cfg config.PhysicsConfig) bool {
			return fv.PeakTorque < cfg.TorqueAbsMin || fv.PeakTorque > cfg.TorqueAbsMax
		},
	},
}

// Layer evaluates the constraint battery against configured bounds
type Layer struct {
	cfg       config.PhysicsConfig
	disabledE map[diagnosis.ECode]bool
	disabledR map[diagnosis.RCode]bool
}

// NewLayer creates a physics layer from the configured bounds and the
// disabled-code lists.
func NewLayer(cfg config.PhysicsConfig, codes config.CodesConfig) *Layer {
	l := &Layer{
		cfg:       cfg,
		disabledE: make(map[diagnosis.ECode]bool, len(codes.DisabledECodes)),
		disabledR: make(map[diagnosis.RCode]bool, len(codes.DisabledRCodes)),
	}
	for _, e := range codes.DisabledECodes {
		l.disabledE[diagnosis.ECode(e)] = true
	}
	for _, r := range codes.DisabledRCodes {
		l.disabledR[diagnosis.RCode(r)] = true
	}
	return l
}

// Evaluate runs every rule and unions the violations. A disabled E-code is
// omitted entirely and does not fail the verdict; a disabled R-code only
// suppresses the remedial action text.
func (l *Layer) Evaluate(fv features.Vector) Verdict {
	v := Verdict{Pass: true}
	for _, r := range battery {
		if !r.violated(fv, l.cfg) {
			continue
		}
		if l.disabledE[r.code] {
			continue
		}
		v.Pass = false
		if r.fatal {
			v.Fatal = true
		}
		v.ECodes = append(v.ECodes, r.code)
		if rc, ok := diagnosis.RCodeFor(r.code); ok && !l.disabledR[rc] {
			v.RCodes = append(v.RCodes, rc)
		}
	}
	return v
}

// ECodeDisabled reports whether a code is suppressed by configuration
func (l *Layer) ECodeDisabled(code diagnosis.ECode) bool {
	return l.disabledE[code]
}
