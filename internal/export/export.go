// Package export writes a user's health record as an .xlsx workbook with
// one sheet each for the profile, the medical records and the vitals.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sakif/medhistory/internal/model"
)

// Sheet names.
const (
	SheetProfile = "Profile"
	SheetRecords = "Records"
	SheetVitals  = "Vitals"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	recordHeaders = []string{"Date", "Priority", "Diagnosis", "Treatment", "Doctor", "Body Part", "Notes", "Prescription"}
	vitalsHeaders = []string{"Date", "Blood Pressure", "Sugar (mg/dL)", "Temperature (°C)", "Report"}
)

// Workbook renders the workbook and returns its bytes.
//
// EXCELIZE IN BRIEF:
// excelize.NewFile starts a workbook with one sheet, "Sheet1", which is
// renamed rather than deleted (a workbook needs at least one sheet).
// Cells are addressed "A1" style; SetSheetRow writes a whole row of []any
// starting at a cell, picking the cell type from each Go value (int →
// number, string → text, nil → empty). Styles are registered once with
// NewStyle and referenced by the returned id.
func Workbook(profile model.Profile, records []model.MedicalRecord, vitals []model.VitalsReading) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetProfile); err != nil {
		return nil, fmt.Errorf("export: renaming default sheet: %w", err)
	}
	for _, name := range []string{SheetRecords, SheetVitals} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("export: creating sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("export: creating header style: %w", err)
	}

	if err := writeProfile(f, profile, headerStyle); err != nil {
		return nil, err
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Date, r.Priority, r.Diagnosis, r.Treatment, r.Doctor, r.BodyPart, r.Notes, r.PrescriptionURL}
	}
	if err := writeTable(f, SheetRecords, recordHeaders, rows, headerStyle); err != nil {
		return nil, err
	}

	rows = make([][]any, len(vitals))
	for i, v := range vitals {
		var temp any
		if v.Temperature.Valid {
			temp = v.Temperature.Value
		}
		rows[i] = []any{v.Date, v.BloodPressure, v.Sugar.Int(), temp, v.ReportURL}
	}
	if err := writeTable(f, SheetVitals, vitalsHeaders, rows, headerStyle); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export: writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeProfile(f *excelize.File, p model.Profile, style int) error {
	pairs := [][]any{
		{"Name", p.Name},
		{"Email", p.Email},
		{"Age", p.Age.Int()},
		{"Gender", p.Gender},
		{"Blood Group", p.BloodGroup},
		{"Emergency Contact", p.EmergencyContact},
		{"Allergies", p.Allergies},
	}
	for i, pair := range pairs {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("export: profile cell: %w", err)
		}
		if err := f.SetSheetRow(SheetProfile, cell, &pair); err != nil {
			return fmt.Errorf("export: profile row %d: %w", i+1, err)
		}
		if err := f.SetCellStyle(SheetProfile, cell, cell, style); err != nil {
			return fmt.Errorf("export: profile style: %w", err)
		}
	}
	if err := f.SetColWidth(SheetProfile, "A", "A", 20); err != nil {
		return fmt.Errorf("export: profile width: %w", err)
	}
	return f.SetColWidth(SheetProfile, "B", "B", 40)
}

// writeTable writes a bold header row, the data rows below it, and freezes
// the header.
func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any, style int) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", sheet, err)
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("export: %s header range: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("export: %s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("export: %s columns: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("export: %s widths: %w", sheet, err)
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
