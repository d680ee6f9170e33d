package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nuam/internal"
	"nuam/internal/catalog"
)

var testExchanges = []internal.Exchange{
	{Tag: "bcs", Label: "BCS", CountryCode: "CHL", Currency: "CLP"},
	{Tag: "bvc", Label: "BVC", CountryCode: "COL", Currency: "COP"},
	{Tag: "bvl", Label: "BVL", CountryCode: "PER", Currency: "PEN"},
}

func testOptions() Options {
	return Options{
		Exchanges: testExchanges,
		Countries: catalog.BuildCountryIndex(catalog.DefaultCountries()),
	}
}

// wideRows is a regional bulletin: one column group per exchange, with the
// exchange tag on a second header row.
func wideRows() [][]any {
	return [][]any{
		{"Informe Bursátil Regional"},
		{"Emisor", "Ticker", "Cap. Bursátil", "Emisor", "Ticker", "Cap. Bursátil", "Emisor", "Ticker", "Cap. Bursátil"},
		{"BCS", "BCS", "BCS", "BVC", "BVC", "BVC", "BVL", "BVL", "BVL"},
		{"Banco de Chile", "CHILE", "1,000", "Ecopetrol", "ECOPETROL", "2000", "Credicorp", "BAP", "3000"},
		{"Banco Río", "", "abc"},
		{},
		{"", "LTM", "10"},
	}
}

// tableRows is a one-company-per-row sheet whose header spills onto a second
// row of qualifiers.
func tableRows() [][]any {
	return [][]any{
		{"Informe"},
		{"Nemotécnico", "Nombre", "País", "Sector", "Moneda", "Cap. Bursátil", "Fecha Reporte", "Mercado"},
		{"", "Emisor", "", "", "", "(MM)", "", ""},
		{"SQM-B", "Sociedad Química y Minera", "Chile", "Materiales", "CLP", "1,234.50", "2024-03-31", "BCS"},
		{"ECOPETROL", "Ecopetrol", "", "Energía", "", "n/d", "", "Bolsa de Valores de Colombia (BVC)"},
		{"", "Sin Ticker SA", "PER"},
		{nil, nil, nil},
	}
}

func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := make([]any, len(row))
			copy(values, row)
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	path := filepath.Join(t.TempDir(), "informe.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}
