package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/sizing"
)

const summarySheet = "Summary"

var xlsxHeaders = []interface{}{"Category", "Current", "Reference", "Change", "Change %", "Size"}

// generateXLSXReport writes a workbook with a summary sheet and one sheet
// per dataset. TCV rows carry a fill in the color of their size.
func (rg *ReportGenerator) generateXLSXReport(report *Report, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to prepare workbook: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sizeStyles := make(map[string]int)
	for _, size := range sizing.All() {
		id, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Color: []string{size.HexColor()}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create size style: %w", err)
		}
		sizeStyles[size.String()] = id
	}

	if err := writeSummarySheet(f, report); err != nil {
		return err
	}

	for _, section := range report.Sections {
		sheet := string(section.Dataset)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if err := writeSectionSheet(f, sheet, section, headerStyle, sizeStyles); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	return f.Write(writer)
}

func writeSummarySheet(f *excelize.File, report *Report) error {
	p := report.Period
	categories := "all"
	if !p.AllCategories() {
		categories = fmt.Sprint(p.SelectedCategories)
	}

	rows := [][]interface{}{
		{"Run ID", report.RunID},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Current window", p.CurrentStartFiscal + " - " + p.CurrentEndFiscal, p.CurrentStart + " to " + p.CurrentEnd},
		{"Reference window", p.ReferenceStartFiscal + " - " + p.ReferenceEndFiscal, p.ReferenceStart + " to " + p.ReferenceEnd},
		{"Categories", categories},
	}
	for _, section := range report.Sections {
		for _, note := range section.Notes {
			rows = append(rows, []interface{}{"Note", string(section.Dataset) + " " + note})
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "C", 24)
}

func writeSectionSheet(f *excelize.File, sheet string, section Section, headerStyle int, sizeStyles map[string]int) error {
	headers := xlsxHeaders
	withSize := section.Dataset == models.DatasetTCV
	if !withSize {
		headers = headers[:len(headers)-1]
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	rows := append(append([]Row{}, section.Rows...), section.Total)
	for i, row := range rows {
		line := i + 2
		var percent interface{} = "N/A"
		if row.Percent != nil {
			percent = amountFloat(*row.Percent)
		}
		values := []interface{}{
			row.Category,
			amountFloat(row.Current),
			amountFloat(row.Reference),
			amountFloat(row.Change),
			percent,
		}
		if withSize {
			values = append(values, row.Size)
		}

		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}

		if withSize {
			sizeCell, err := excelize.CoordinatesToCellName(len(values), line)
			if err != nil {
				return err
			}
			if style, ok := sizeStyles[row.Size]; ok {
				if err := f.SetCellStyle(sheet, sizeCell, sizeCell, style); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "E", 18)
}
