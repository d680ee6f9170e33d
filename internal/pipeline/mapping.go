package pipeline

import (
	"errors"
	"fmt"

	"nuam/internal/util"
)

type Field string

const (
	FieldTicker     Field = "ticker"
	FieldIssuer     Field = "issuer"
	FieldCountry    Field = "country"
	FieldSector     Field = "sector"
	FieldCurrency   Field = "currency"
	FieldMarketCap  Field = "market_cap"
	FieldReportDate Field = "report_date"
	FieldExchange   Field = "exchange"
)

var ErrNoColumnMapping = errors.New("no ticker and issuer columns")

type fieldMatcher struct {
	field      Field
	candidates []string
}

// columnMatchers is evaluated in order; within a field the leftmost column that
// contains any candidate wins, regardless of which candidate matched.
var columnMatchers = []fieldMatcher{
	{FieldTicker, []string{"ticker", "nemo", "nemotecnico"}},
	{FieldIssuer, []string{"nombre emisor", "nombre", "emisor", "issuer", "company"}},
	{FieldCountry, []string{"pais", "country"}},
	{FieldSector, []string{"sector", "industria"}},
	{FieldCurrency, []string{"moneda", "currency"}},
	{FieldMarketCap, []string{"market cap", "cap bursatil", "cap. bursatil", "capitalizacion", "capitalization", "market capitalization"}},
	{FieldReportDate, []string{"fecha", "fecha reporte", "date"}},
	{FieldExchange, []string{"mercado", "exchange", "bolsa"}},
}

// ColumnMapping maps semantic fields to zero-based column indices. Unmapped
// fields are absent.
type ColumnMapping map[Field]int

func (m ColumnMapping) Index(f Field) (int, bool) {
	idx, ok := m[f]
	return idx, ok
}

// Usable reports whether both mandatory fields resolved.
func (m ColumnMapping) Usable() bool {
	_, ticker := m[FieldTicker]
	_, issuer := m[FieldIssuer]
	return ticker && issuer
}

// MapColumns resolves fields against normalized column names.
func MapColumns(normalized []string) ColumnMapping {
	m := ColumnMapping{}
	for _, matcher := range columnMatchers {
		if idx := findColumn(normalized, matcher.candidates...); idx >= 0 {
			m[matcher.field] = idx
		}
	}
	return m
}

// SelectMapping prefers the combined header reading, then the single one.
func SelectMapping(single, combined HeaderCandidate) (HeaderCandidate, ColumnMapping, error) {
	if m := MapColumns(combined.Normalized); m.Usable() {
		return combined, m, nil
	}
	if m := MapColumns(single.Normalized); m.Usable() {
		return single, m, nil
	}
	return HeaderCandidate{}, nil, fmt.Errorf("%w: columns A %q, columns B %q", ErrNoColumnMapping, single.Names, combined.Names)
}

func findColumn(cols []string, candidates ...string) int {
	for i, col := range cols {
		if col == "" {
			continue
		}
		for _, cand := range candidates {
			if cand = util.Normalize(cand); cand != "" && util.ContainsAny(col, cand) {
				return i
			}
		}
	}
	return -1
}
