// Package report renders carrier models into human-readable summaries for
// the ops surface and the workbook exporter.
package report

import (
	"fmt"
	"strings"

	"screwdiag/domain/carrier"
	"screwdiag/domain/core"
	"screwdiag/domain/features"
)

// HoleRow is one hole's summary line, shared by the markdown and the
// workbook renderers.
type HoleRow struct {
	HoleID          core.HoleID
	Phase           carrier.LifecyclePhase
	Observations    int64
	DriftEvents     int
	GoldenMean      map[features.Metric]float64
	GoldenStd       map[features.Metric]float64
	LastUpdate      core.Timestamp
}

// Summary is the flattened view of one carrier model
type Summary struct {
	ReportID  core.ReportID
	CarrierID core.CarrierID
	Holes     []HoleRow
}

// Summarize flattens a model into ordered hole rows
func Summarize(m *carrier.Model) Summary {
	s := Summary{
		ReportID:  core.ReportID(core.NewID()),
		CarrierID: m.CarrierID,
	}
	for _, holeID := range m.HoleIDs() {
		h := m.Holes[holeID]
		row := HoleRow{
			HoleID:       holeID,
			Phase:        h.Phase,
			Observations: h.Count(),
			DriftEvents:  h.DriftEventCount,
			LastUpdate:   h.LastUpdate,
		}
		if h.GoldenBase != nil {
			row.GoldenMean = make(map[features.Metric]float64, len(h.GoldenBase))
			row.GoldenStd = make(map[features.Metric]float64, len(h.GoldenBase))
			for metric, gs := range h.GoldenBase {
				row.GoldenMean[metric] = gs.Mean
				row.GoldenStd[metric] = gs.Std
			}
		}
		s.Holes = append(s.Holes, row)
	}
	return s
}

// BuildMarkdown renders a carrier model as a markdown document
func BuildMarkdown(m *carrier.Model) string {
	s := Summarize(m)
	var b strings.Builder

	fmt.Fprintf(&b, "# Carrier %s\n\n", s.CarrierID)
	fmt.Fprintf(&b, "Report %s\n\n", s.ReportID)
	if len(s.Holes) == 0 {
		b.WriteString("No holes observed yet.\n")
		return b.String()
	}

	b.WriteString("| Hole | Phase | Observations | Drift events | Golden peak torque | Last update |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, row := range s.Holes {
		golden := "-"
		if row.GoldenMean != nil {
			golden = fmt.Sprintf("%.3f ± %.3f",
				row.GoldenMean[features.MetricPeakTorque],
				row.GoldenStd[features.MetricPeakTorque])
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s |\n",
			row.HoleID, row.Phase, row.Observations, row.DriftEvents, golden, row.LastUpdate)
	}

	b.WriteString("\n## Golden bases\n\n")
	for _, row := range s.Holes {
		if row.GoldenMean == nil {
			continue
		}
		fmt.Fprintf(&b, "### Hole %s\n\n", row.HoleID)
		for _, metric := range features.Tracked() {
			fmt.Fprintf(&b, "- %s: mean %.6f, std %.6f\n", metric, row.GoldenMean[metric], row.GoldenStd[metric])
		}
		b.WriteString("\n")
	}
	return b.String()
}
