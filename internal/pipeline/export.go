package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"nuam/internal"
	"nuam/internal/util"
)

var exportHeaders = []string{
	"ticker", "name", "country", "sector", "currency", "market_cap",
	"exchange", "source", "report_date", "created_at", "updated_at",
}

// ExportCompaniesToXLSX writes the catalog to a single-sheet workbook. Blank
// cells stand for unset fields.
func ExportCompaniesToXLSX(companies []internal.Company, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, c := range companies {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, c.Ticker)
		set(2, c.Name)
		set(3, util.Deref(c.CountryCode))
		set(4, util.Deref(c.Sector))
		set(5, util.Deref(c.Currency))
		if c.MarketCap != nil {
			v, _ := c.MarketCap.Float64()
			set(6, v)
		}
		set(7, util.Deref(c.Exchange))
		set(8, c.Source)
		set(9, util.Deref(util.FormatDate(c.ReportDate)))
		set(10, c.CreatedAt)
		set(11, c.UpdatedAt)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
