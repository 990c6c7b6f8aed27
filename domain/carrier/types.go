package carrier

import (
	"fmt"
	"sort"

	"screwdiag/domain/core"
	"screwdiag/domain/features"
	"screwdiag/internal/rolling"
)

// SchemaVersion is stamped into every persisted carrier model. Loading a
// model with a different version fails as corruption.
const SchemaVersion = 1

// LifecyclePhase tracks how much statistical history a hole has and
// whether its recent behavior still matches the golden base.
type LifecyclePhase string

const (
	PhaseColdStart     LifecyclePhase = "cold_start"
	PhaseShadow        LifecyclePhase = "shadow"
	PhaseGoldenLocked  LifecyclePhase = "golden_locked"
	PhaseDriftDetected LifecyclePhase = "drift_detected"
)

// Valid reports whether the phase is one of the four known states
func (p LifecyclePhase) Valid() bool {
	switch p {
	case PhaseColdStart, PhaseShadow, PhaseGoldenLocked, PhaseDriftDetected:
		return true
	}
	return false
}

// GoldenStat is the frozen mean/std snapshot for one metric
type GoldenStat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// GoldenBase maps each tracked metric to its snapshot taken when the hole
// first reached the golden threshold. Immutable once set, short of an
// explicit reset.
type GoldenBase map[features.Metric]GoldenStat

// HoleState aggregates everything the engine knows about one hole
type HoleState struct {
	Phase           LifecyclePhase                         `json:"phase"`
	DriftEventCount int                                    `json:"drift_event_count"`
	RecoveryStreak  int                                    `json:"recovery_streak"`
	Metrics         map[features.Metric]*rolling.Accumulator `json:"metrics"`
	GoldenBase      GoldenBase                             `json:"golden_base"`
	LastUpdate      core.Timestamp                         `json:"last_update"`
}

// NewHoleState creates a cold-start hole with empty accumulators
func NewHoleState(windowSize int) *HoleState {
	h := &HoleState{
		Phase:   PhaseColdStart,
		Metrics: make(map[features.Metric]*rolling.Accumulator, len(features.Tracked())),
	}
	for _, m := range features.Tracked() {
		h.Metrics[m] = rolling.NewAccumulator(windowSize)
	}
	return h
}

// Count returns the number of observations folded into this hole. All
// tracked metrics observe together, so any accumulator's count serves.
func (h *HoleState) Count() int64 {
	acc := h.Metrics[features.MetricPeakTorque]
	if acc == nil {
		return 0
	}
	return acc.Count
}

// Reset returns the hole to cold start: moments zeroed, windows cleared,
// golden base dropped. Administrative use only.
func (h *HoleState) Reset() {
	h.Phase = PhaseColdStart
	h.DriftEventCount = 0
	h.RecoveryStreak = 0
	h.GoldenBase = nil
	for _, acc := range h.Metrics {
		acc.Reset()
	}
}

// Clone returns a deep copy of the hole state
func (h *HoleState) Clone() *HoleState {
	dup := &HoleState{
		Phase:           h.Phase,
		DriftEventCount: h.DriftEventCount,
		RecoveryStreak:  h.RecoveryStreak,
		LastUpdate:      h.LastUpdate,
		Metrics:         make(map[features.Metric]*rolling.Accumulator, len(h.Metrics)),
	}
	for m, acc := range h.Metrics {
		dup.Metrics[m] = acc.Clone()
	}
	if h.GoldenBase != nil {
		dup.GoldenBase = make(GoldenBase, len(h.GoldenBase))
		for m, gs := range h.GoldenBase {
			dup.GoldenBase[m] = gs
		}
	}
	return dup
}

// Model is the per-carrier aggregate the store persists
type Model struct {
	SchemaVersion int                           `json:"schema_version"`
	CarrierID     core.CarrierID                `json:"carrier_id"`
	Holes         map[core.HoleID]*HoleState    `json:"holes"`
}

// NewModel creates an empty model for a previously unknown carrier
func NewModel(carrierID core.CarrierID) *Model {
	return &Model{
		SchemaVersion: SchemaVersion,
		CarrierID:     carrierID,
		Holes:         make(map[core.HoleID]*HoleState),
	}
}

// Hole returns the state for a hole, creating a cold-start entry on first use
func (m *Model) Hole(id core.HoleID, windowSize int) *HoleState {
	if h, ok := m.Holes[id]; ok {
		return h
	}
	h := NewHoleState(windowSize)
	m.Holes[id] = h
	return h
}

// HoleIDs returns the hole identifiers in lexicographic order
func (m *Model) HoleIDs() []core.HoleID {
	ids := make([]core.HoleID, 0, len(m.Holes))
	for id := range m.Holes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Normalize repairs a freshly deserialized model: nil maps become empty,
// missing accumulators are created, phases default to cold start, and
// window capacities are restored.
func (m *Model) Normalize(windowSize int) {
	if m.Holes == nil {
		m.Holes = make(map[core.HoleID]*HoleState)
	}
	for _, h := range m.Holes {
		if !h.Phase.Valid() {
			h.Phase = PhaseColdStart
		}
		if h.Metrics == nil {
			h.Metrics = make(map[features.Metric]*rolling.Accumulator, len(features.Tracked()))
		}
		for _, metric := range features.Tracked() {
			if acc, ok := h.Metrics[metric]; ok {
				acc.SetCapacity(windowSize)
			} else {
				h.Metrics[metric] = rolling.NewAccumulator(windowSize)
			}
		}
	}
}

// Clone returns a deep copy of the model
func (m *Model) Clone() *Model {
	dup := &Model{
		SchemaVersion: m.SchemaVersion,
		CarrierID:     m.CarrierID,
		Holes:         make(map[core.HoleID]*HoleState, len(m.Holes)),
	}
	for id, h := range m.Holes {
		dup.Holes[id] = h.Clone()
	}
	return dup
}

// Validate checks the invariants a persisted model must satisfy
func (m *Model) Validate() error {
	if m.SchemaVersion != SchemaVersion {
		return core.NewCorruptionError(m.CarrierID,
			fmt.Errorf("schema_version %d, want %d", m.SchemaVersion, SchemaVersion))
	}
	if m.CarrierID == "" {
		return core.NewValidationError("carrier_model", "carrier_id cannot be empty")
	}
	for id, h := range m.Holes {
		if !h.Phase.Valid() {
			return core.NewValidationError("carrier_model", "unknown phase for hole "+id.String())
		}
	}
	return nil
}
