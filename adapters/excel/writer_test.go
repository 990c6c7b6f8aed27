package excel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"screwdiag/domain/carrier"
	"screwdiag/domain/features"
)

func TestWriteWorkbook(t *testing.T) {
	m := carrier.NewModel("CARRIER_9")
	h := m.Hole("H1", 10)
	h.Phase = carrier.PhaseGoldenLocked
	h.GoldenBase = carrier.GoldenBase{
		features.MetricPeakTorque:    {Mean: 5.0, Std: 0.02},
		features.MetricRigiditySlope: {Mean: 0.05, Std: 0.001},
		features.MetricTotalWork:     {Mean: 700, Std: 9},
	}
	for i := 0; i < 100; i++ {
		for _, metric := range features.Tracked() {
			h.Metrics[metric].Observe(5)
		}
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, NewReportWriter().Write(m, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "CARRIER_9", got)

	phase, err := f.GetCellValue("Holes", "B2")
	require.NoError(t, err)
	assert.Equal(t, "golden_locked", phase)
}
