// Package excel exports carrier reports as workbooks for line engineers
// who review fastening quality in spreadsheets.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"screwdiag/domain/carrier"
	"screwdiag/domain/features"
	"screwdiag/internal/report"
)

const (
	summarySheet = "Summary"
	holesSheet   = "Holes"
)

// ReportWriter renders a carrier model into an xlsx workbook
type ReportWriter struct{}

// NewReportWriter creates a new workbook exporter
func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// Write builds the workbook and saves it to path
func (w *ReportWriter) Write(m *carrier.Model, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := report.Summarize(m)

	if err := w.writeSummary(f, summary); err != nil {
		return err
	}
	if err := w.writeHoles(f, summary); err != nil {
		return err
	}

	// Drop the default sheet excelize creates
	if idx, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report workbook: %w", err)
	}
	return nil
}

func (w *ReportWriter) writeSummary(f *excelize.File, s report.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Carrier", s.CarrierID.String()},
		{"Report", s.ReportID.String()},
		{"Holes", len(s.Holes)},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

func (w *ReportWriter) writeHoles(f *excelize.File, s report.Summary) error {
	if _, err := f.NewSheet(holesSheet); err != nil {
		return fmt.Errorf("failed to create holes sheet: %w", err)
	}

	header := []interface{}{"Hole", "Phase", "Observations", "Drift events"}
	for _, metric := range features.Tracked() {
		header = append(header, string(metric)+" golden mean", string(metric)+" golden std")
	}
	if err := f.SetSheetRow(holesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write holes header: %w", err)
	}

	for i, row := range s.Holes {
		cells := []interface{}{row.HoleID.String(), string(row.Phase), row.Observations, row.DriftEvents}
		for _, metric := range features.Tracked() {
			if row.GoldenMean != nil {
				cells = append(cells, row.GoldenMean[metric], row.GoldenStd[metric])
			} else {
				cells = append(cells, "", "")
			}
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(holesSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write hole row: %w", err)
		}
	}
	return nil
}
