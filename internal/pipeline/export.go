package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"otpgate/internal"
)

// ExportAuditToXLSX writes the extraction audit report: one line per
// captured message with its extraction outcome.
func ExportAuditToXLSX(rows []internal.AuditExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"message_id", "provider", "provider_message_id", "sender", "received_at",
		"message_status", "extraction_status", "code", "rule", "elapsed_ms",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.MessageID)
		set(2, row.Provider)
		set(3, row.ProviderID)
		set(4, row.Sender)
		set(5, row.ReceivedAt)
		set(6, row.Status)
		set(7, derefString(row.Extraction))
		set(8, derefString(row.Code))
		set(9, derefString(row.Rule))
		set(10, derefFloat(row.ElapsedMs))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
