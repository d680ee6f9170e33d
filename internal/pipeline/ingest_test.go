package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuam/internal/util"
)

func TestIngestWideLayout(t *testing.T) {
	src := Sheets{{Name: "Nemo y Cap", Rows: wideRows()}}

	ing, err := Ingest(src, testOptions())
	require.NoError(t, err)

	assert.Equal(t, "Nemo y Cap", ing.Sheet)
	assert.Equal(t, LayoutWide, ing.Layout)
	assert.Equal(t, HeaderCombined, ing.Header)
	assert.Equal(t, 1, ing.HeaderRow)
	require.Len(t, ing.Blocks, 3)

	require.Len(t, ing.Records, 4)
	byTicker := map[string]int{}
	for i, rec := range ing.Records {
		byTicker[rec.Ticker] = i
	}

	// One physical row yields one company per exchange.
	for ticker, country := range map[string]string{"CHILE": "CHL", "ECOPETROL": "COL", "BAP": "PER"} {
		i, ok := byTicker[ticker]
		require.True(t, ok, ticker)
		assert.Equal(t, country, util.Deref(ing.Records[i].CountryCode), ticker)
	}
	assert.Equal(t, "COP", util.Deref(ing.Records[byTicker["ECOPETROL"]].Currency))
	assert.Equal(t, "1000", ing.Records[byTicker["CHILE"]].MarketCap.String())

	rio := ing.Records[byTicker["BANCORIO"]]
	assert.Equal(t, "Banco Río", rio.Name)
	assert.Nil(t, rio.MarketCap)

	// Only the ticker without issuer on the last row; empty blocks beside a
	// listed company are not skips.
	assert.Equal(t, 1, ing.Skipped)
}

func TestIngestWideRowSkipCounting(t *testing.T) {
	rows := wideRows()[:3]
	rows = append(rows,
		[]any{"Banco de Chile", "CHILE", "1000"},
		[]any{"", "", "50", "", "", "60"},
		[]any{"", "SIN", "1", "", "OTRO", "2"},
	)

	ing, err := Ingest(Sheets{{Name: "Nemo y Cap", Rows: rows}}, testOptions())
	require.NoError(t, err)
	require.Len(t, ing.Records, 1)
	// Market caps without ticker or issuer count once for the row; the last
	// row has two blocks with a ticker but no issuer.
	assert.Equal(t, 3, ing.Skipped)
}

func TestIngestTreatsNonFiniteCellsAsBlank(t *testing.T) {
	rows := tableRows()
	rows = append(rows,
		[]any{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
		[]any{"BAP", "Credicorp", "PER", nil, nil, math.NaN(), nil, "BVL"},
	)

	var ing Ingestion
	var err error
	require.NotPanics(t, func() {
		ing, err = Ingest(Sheets{{Name: "Emisores", Rows: rows}}, testOptions())
	})
	require.NoError(t, err)
	require.Len(t, ing.Records, 3)
	assert.Equal(t, 1, ing.Skipped, "NaN row is blank, not skipped")

	bap := ing.Records[2]
	assert.Equal(t, "BAP", bap.Ticker)
	assert.Nil(t, bap.MarketCap)
}

func TestIngestTableLayout(t *testing.T) {
	src := Sheets{{Name: "Emisores", Rows: tableRows()}}

	ing, err := Ingest(src, testOptions())
	require.NoError(t, err)
	assert.Equal(t, LayoutTable, ing.Layout)
	assert.Equal(t, HeaderCombined, ing.Header)
	assert.Equal(t, 1, ing.Skipped)
	require.Len(t, ing.Records, 2)

	sqm := ing.Records[0]
	assert.Equal(t, "SQM-B", sqm.Ticker)
	assert.Equal(t, "CHL", util.Deref(sqm.CountryCode))
	assert.Equal(t, "Materiales", util.Deref(sqm.Sector))
	assert.Equal(t, "CLP", util.Deref(sqm.Currency))
	assert.Equal(t, "1234.5", sqm.MarketCap.String())
	assert.Equal(t, "2024-03-31", util.Deref(util.FormatDate(sqm.ReportDate)))
	assert.Equal(t, "BCS", util.Deref(sqm.Exchange))

	eco := ing.Records[1]
	assert.Nil(t, eco.MarketCap)
	assert.Nil(t, eco.CountryCode, "explicit country column present but blank")
	assert.Nil(t, eco.Currency)
	assert.Nil(t, eco.ReportDate)
}

func TestIngestPrefersNemoCapSheet(t *testing.T) {
	src := Sheets{
		{Name: "A Emisores", Rows: tableRows()},
		{Name: "Nemo Cap", Rows: wideRows()},
	}
	ing, err := Ingest(src, testOptions())
	require.NoError(t, err)
	assert.Equal(t, "Nemo Cap", ing.Sheet)
}

func TestIngestFirstUsableSheetWins(t *testing.T) {
	junk := [][]any{{"Codigo", "Descripcion", "Precio"}, {"1", "x", "2"}}
	src := Sheets{
		{Name: "C", Rows: wideRows()},
		{Name: "A", Rows: junk},
		{Name: "B", Rows: tableRows()},
	}

	ing, err := Ingest(src, testOptions())
	require.NoError(t, err)
	assert.Equal(t, "B", ing.Sheet)
	require.NotEmpty(t, ing.Diagnostics)
	assert.Contains(t, ing.Diagnostics[0], "[A]")
}

func TestIngestRejectsWorkbookWithoutUsableSheet(t *testing.T) {
	src := Sheets{
		{Name: "Resumen", Rows: [][]any{{"Codigo", "Descripcion", "Precio"}}},
		{Name: "Vacia"},
	}

	ing, err := Ingest(src, testOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUsableSheet))
	assert.Contains(t, err.Error(), "Resumen, Vacia")
	assert.Len(t, ing.Diagnostics, 2)
	assert.Contains(t, ing.Diagnostics[0], "columns A")
}

func TestIngestFlagsDuplicateTickers(t *testing.T) {
	rows := [][]any{
		{"Emisor", "Ticker", "Cap"},
		{"BCS", "BCS", "BCS"},
		{"Banco Estado Uno", "", ""},
		{"Banco Estado Dos", "", ""},
	}
	ing, err := Ingest(Sheets{{Name: "S", Rows: rows}}, testOptions())
	require.NoError(t, err)
	require.Len(t, ing.Records, 2)
	assert.Equal(t, ing.Records[0].Ticker, ing.Records[1].Ticker)
	require.Len(t, ing.Diagnostics, 1)
	assert.Contains(t, ing.Diagnostics[0], "BANCOESTAD")
}

func TestOrderSheets(t *testing.T) {
	got := OrderSheets([]string{"Resumen", "Índice", "Ticker & Cap BVL", "Nemo Cap"})
	assert.Equal(t, []string{"Nemo Cap", "Ticker & Cap BVL", "Resumen", "Índice"}, got)
}
