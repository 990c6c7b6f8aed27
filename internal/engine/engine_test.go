package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screwdiag/adapters/filestore"
	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/domain/curve"
	"screwdiag/domain/diagnosis"
	"screwdiag/domain/features"
	"screwdiag/internal"
	"screwdiag/internal/config"
	"screwdiag/internal/testkit"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineAt(t, t.TempDir())
}

func newTestEngineAt(t *testing.T, dir string) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Store.ModelsDir = dir

	logger := internal.NewLogger(internal.LogLevelError)
	store, err := filestore.NewStore(dir, logger)
	require.NoError(t, err)

	eng, err := New(cfg, store, logger)
	require.NoError(t, err)
	return eng
}

func diagnoseOne(t *testing.T, eng *Engine, carrierID core.CarrierID, c curve.Curve) diagnosis.Result {
	t.Helper()
	results, err := eng.Diagnose(context.Background(), carrierID, map[core.HoleID]curve.Curve{"H1": c})
	require.NoError(t, err)
	require.Contains(t, results, core.HoleID("H1"))
	return results["H1"]
}

func holeState(t *testing.T, eng *Engine, carrierID core.CarrierID, holeID core.HoleID) *carrier.HoleState {
	t.Helper()
	model, err := eng.ModelSnapshot(context.Background(), carrierID)
	require.NoError(t, err)
	h, ok := model.Holes[holeID]
	require.True(t, ok)
	return h
}

func TestColdStartOK(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(1)

	res := diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())

	assert.Equal(t, diagnosis.StatusOK, res.Status)
	assert.Nil(t, res.OptimizationSuggestion)
	assert.InDelta(t, 5.0, res.Features.PeakTorque, 0.2)

	h := holeState(t, eng, "CARRIER_1", "H1")
	assert.Equal(t, carrier.PhaseColdStart, h.Phase)
	assert.Equal(t, int64(1), h.Count())
}

func TestShadowTransitionAfterFifty(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(2)

	for i := 0; i < 50; i++ {
		res := diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
		assert.Equal(t, diagnosis.StatusOK, res.Status, "observation %d", i+1)
	}

	h := holeState(t, eng, "CARRIER_1", "H1")
	assert.Equal(t, carrier.PhaseShadow, h.Phase)
	assert.Equal(t, int64(50), h.Count())
}

func TestGoldenLockAfterHundred(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(3)

	for i := 0; i < 100; i++ {
		diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	}

	h := holeState(t, eng, "CARRIER_1", "H1")
	assert.Equal(t, carrier.PhaseGoldenLocked, h.Phase)
	require.NotNil(t, h.GoldenBase)
	gb := h.GoldenBase[features.MetricPeakTorque]
	assert.InDelta(t, 5.0, gb.Mean, 0.1)
	assert.Greater(t, gb.Std, 0.0)
}

func TestStatisticalNGPastGoldenLock(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(4)

	for i := 0; i < 100; i++ {
		diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	}
	gb := holeState(t, eng, "CARRIER_1", "H1").GoldenBase[features.MetricPeakTorque]

	outlier := kit.Curve(testkit.CurveOpts{PeakTorque: gb.Mean + 5*gb.Std})
	res := diagnoseOne(t, eng, "CARRIER_1", outlier)

	assert.Equal(t, diagnosis.StatusNG, res.Status)
	assert.Contains(t, res.ScrewIssue.ECodes, diagnosis.ECodeTorqueRange)
	assert.Contains(t, res.ScrewIssue.RCodes, diagnosis.RCodeTorqueRange)
}

func TestNegativeSlopeSkipsLearning(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(5)

	for i := 0; i < 10; i++ {
		diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	}
	countBefore := holeState(t, eng, "CARRIER_1", "H1").Count()

	res := diagnoseOne(t, eng, "CARRIER_1", kit.NegativeSlopeCurve())

	assert.Equal(t, diagnosis.StatusNG, res.Status)
	assert.Contains(t, res.ScrewIssue.ECodes, diagnosis.ECodeNegSlope)
	assert.Contains(t, res.ScrewIssue.RCodes, diagnosis.RCodeCheckFixture)

	countAfter := holeState(t, eng, "CARRIER_1", "H1").Count()
	assert.Equal(t, countBefore, countAfter, "contaminated data never enters the statistics")
}

func TestDriftDetection(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(6)

	for i := 0; i < 100; i++ {
		diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	}
	gb := holeState(t, eng, "CARRIER_1", "H1").GoldenBase[features.MetricPeakTorque]
	require.Greater(t, gb.Std, 0.0)

	var last diagnosis.Result
	for i := 0; i < config.DefaultWindowSize; i++ {
		last = diagnoseOne(t, eng, "CARRIER_1", kit.ShiftedCurve(gb.Mean+1.2*gb.Std))
	}

	h := holeState(t, eng, "CARRIER_1", "H1")
	assert.Equal(t, carrier.PhaseDriftDetected, h.Phase, "shift of 1.2 golden stds drifts within W observations")
	assert.GreaterOrEqual(t, h.DriftEventCount, 1)

	require.NotNil(t, last.OptimizationSuggestion)
	assert.Equal(t, "OPTIMIZE", last.OptimizationSuggestion.Status)
	assert.Equal(t, diagnosis.ECodeDrift, last.OptimizationSuggestion.ECode)
	assert.Negative(t, last.OptimizationSuggestion.Params.SuggestedTorqueAdjustmentPercent,
		"upward torque drift recommends recentering downward")
}

func TestBadInputIsolated(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(7)

	results, err := eng.Diagnose(context.Background(), "CARRIER_1", map[core.HoleID]curve.Curve{
		"H1": kit.NormalCurve(),
		"H2": kit.InvalidCurve(),
	})
	require.NoError(t, err)

	assert.Equal(t, diagnosis.StatusOK, results["H1"].Status)
	assert.Equal(t, diagnosis.StatusNG, results["H2"].Status)
	assert.Equal(t, []diagnosis.ECode{diagnosis.ECodeBadInput}, results["H2"].ScrewIssue.ECodes)

	// The rejected hole never entered the model
	model, err := eng.ModelSnapshot(context.Background(), "CARRIER_1")
	require.NoError(t, err)
	assert.Contains(t, model.Holes, core.HoleID("H1"))
	assert.NotContains(t, model.Holes, core.HoleID("H2"))
}

func TestModelPersistsAcrossEngines(t *testing.T) {
	dir := t.TempDir()
	kit := testkit.NewKit(8)

	eng1 := newTestEngineAt(t, dir)
	for i := 0; i < 60; i++ {
		diagnoseOne(t, eng1, "CARRIER_1", kit.NormalCurve())
	}

	eng2 := newTestEngineAt(t, dir)
	h := holeState(t, eng2, "CARRIER_1", "H1")
	assert.Equal(t, int64(60), h.Count())
	assert.Equal(t, carrier.PhaseShadow, h.Phase)
}

func TestCorruptedModelFallsBackToColdStart(t *testing.T) {
	dir := t.TempDir()
	kit := testkit.NewKit(9)

	// Poison the persisted model before the engine sees it
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CARRIER_1.json"), []byte("{broken"), 0644))

	eng := newTestEngineAt(t, dir)
	res := diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	assert.Equal(t, diagnosis.StatusOK, res.Status)
	assert.Equal(t, int64(1), holeState(t, eng, "CARRIER_1", "H1").Count())
}

func TestDeterminism(t *testing.T) {
	run := func(dir string) (map[core.HoleID]diagnosis.Result, *carrier.Model) {
		eng := newTestEngineAt(t, dir)
		kit := testkit.NewKit(42)

		var last map[core.HoleID]diagnosis.Result
		for i := 0; i < 120; i++ {
			results, err := eng.Diagnose(context.Background(), "CARRIER_1", map[core.HoleID]curve.Curve{
				"H1": kit.NormalCurve(),
				"H2": kit.NormalCurve(),
			})
			require.NoError(t, err)
			last = results
		}

		model, err := eng.ModelSnapshot(context.Background(), "CARRIER_1")
		require.NoError(t, err)
		for _, h := range model.Holes {
			h.LastUpdate = core.Timestamp{}
		}
		return last, model
	}

	resA, modelA := run(t.TempDir())
	resB, modelB := run(t.TempDir())
	assert.Equal(t, resA, resB)
	assert.Equal(t, modelA, modelB)
}

func TestResetHole(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(10)

	for i := 0; i < 20; i++ {
		diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	}
	require.NoError(t, eng.ResetHole(context.Background(), "CARRIER_1", "H1"))

	h := holeState(t, eng, "CARRIER_1", "H1")
	assert.Equal(t, carrier.PhaseColdStart, h.Phase)
	assert.Zero(t, h.Count())
	assert.Nil(t, h.GoldenBase)

	err := eng.ResetHole(context.Background(), "CARRIER_1", "NOPE")
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))
}

func TestDeleteCarrier(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(11)

	diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	require.NoError(t, eng.DeleteCarrier(context.Background(), "CARRIER_1"))

	ids, err := eng.Carriers(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, ids, core.CarrierID("CARRIER_1"))

	// A fresh diagnosis restarts from cold
	diagnoseOne(t, eng, "CARRIER_1", kit.NormalCurve())
	assert.Equal(t, int64(1), holeState(t, eng, "CARRIER_1", "H1").Count())
}

func TestDiagnoseBatchCoversAllCarriers(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(12)

	payload := map[core.CarrierID]map[core.HoleID]curve.Curve{
		"CARRIER_1": {"H1": kit.NormalCurve(), "H2": kit.NormalCurve()},
		"CARRIER_2": {"H1": kit.NormalCurve()},
		"CARRIER_3": {"H1": kit.InvalidCurve()},
	}

	results, err := eng.DiagnoseBatch(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, results["CARRIER_1"], 2)
	assert.Equal(t, diagnosis.StatusNG, results["CARRIER_3"]["H1"].Status)
}

func TestRejectsInvalidCarrierID(t *testing.T) {
	eng := newTestEngine(t)
	kit := testkit.NewKit(13)

	_, err := eng.Diagnose(context.Background(), "../escape", map[core.HoleID]curve.Curve{"H1": kit.NormalCurve()})
	require.Error(t, err)
}
