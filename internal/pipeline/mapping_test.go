package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapColumnsResolvesAllFields(t *testing.T) {
	m := MapColumns(normalizeAll([]string{
		"Nemotécnico", "Nombre Emisor", "País", "Industria", "Moneda",
		"Capitalización", "Fecha Reporte", "Bolsa",
	}))

	want := ColumnMapping{
		FieldTicker:     0,
		FieldIssuer:     1,
		FieldCountry:    2,
		FieldSector:     3,
		FieldCurrency:   4,
		FieldMarketCap:  5,
		FieldReportDate: 6,
		FieldExchange:   7,
	}
	assert.Equal(t, want, m)
	assert.True(t, m.Usable())
}

func TestMapColumnsLeftmostColumnWins(t *testing.T) {
	// "Nombre" appears before "Nombre Emisor"; position beats candidate order.
	m := MapColumns(normalizeAll([]string{"Ticker", "Nombre corto", "Nombre Emisor", "Ticker ADR"}))
	idx, ok := m.Index(FieldTicker)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = m.Index(FieldIssuer)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestMapColumnsUnusableWithoutIssuer(t *testing.T) {
	m := MapColumns(normalizeAll([]string{"Ticker", "Sector", "Moneda"}))
	assert.False(t, m.Usable())
	_, ok := m.Index(FieldIssuer)
	assert.False(t, ok)
}

func TestSelectMappingPrefersCombinedHeader(t *testing.T) {
	sheet := RawSheet{Rows: [][]any{
		{"Nemo", "Nombre", "Moneda"},
		{"SQM-B", "SQM", "CLP"},
		{"BAP", "Credicorp", "PEN"},
	}}
	single, combined := HeaderCandidates(sheet, 0)

	header, m, err := SelectMapping(single, combined)
	require.NoError(t, err)
	assert.Equal(t, HeaderCombined, header.Label)
	assert.Equal(t, 2, header.DataStart)
	assert.True(t, m.Usable())
}

func TestSelectMappingFallsBackToSingleHeader(t *testing.T) {
	single := HeaderCandidate{Label: HeaderSingle, Names: []string{"Ticker", "Emisor"}, Normalized: []string{"ticker", "emisor"}, DataStart: 1}
	combined := HeaderCandidate{Label: HeaderCombined, Names: []string{"Ticker", ""}, Normalized: []string{"ticker", ""}, DataStart: 2}

	header, _, err := SelectMapping(single, combined)
	require.NoError(t, err)
	assert.Equal(t, HeaderSingle, header.Label)
}

func TestSelectMappingRejectsListingBothColumnSets(t *testing.T) {
	sheet := RawSheet{Rows: [][]any{
		{"Codigo", "Descripcion", "Precio"},
		{"A1", "Cable", "10"},
	}}
	single, combined := HeaderCandidates(sheet, 0)

	_, _, err := SelectMapping(single, combined)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoColumnMapping))
	assert.Contains(t, err.Error(), `columns A ["Codigo" "Descripcion" "Precio"]`)
	assert.Contains(t, err.Error(), `columns B ["Codigo A1" "Descripcion Cable" "Precio 10"]`)
}
