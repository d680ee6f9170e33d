package pipeline

import (
	"regexp"
	"strings"

	"nuam/internal"
	"nuam/internal/util"
)

const DefaultSourceTag = "Excel NUAM"

// CountryResolver resolves a country code or name to a known country.
type CountryResolver interface {
	Resolve(value string) (internal.Country, bool)
}

// Normalizer turns one sheet row into a CatalogRecord. The exchange table is
// passed in so callers can ingest workbooks for a different set of markets.
type Normalizer struct {
	Exchanges []internal.Exchange
	Countries CountryResolver
	SourceTag string
}

// Table normalizes a row of a one-company-per-row sheet. Rows without both a
// ticker and an issuer name are rejected.
func (n Normalizer) Table(sheet RawSheet, row int, m ColumnMapping) (internal.CatalogRecord, bool) {
	text := func(f Field) string {
		idx, ok := m.Index(f)
		if !ok {
			return ""
		}
		return sheet.Text(row, idx)
	}
	value := func(f Field) any {
		idx, ok := m.Index(f)
		if !ok || sheet.Text(row, idx) == "" {
			return nil
		}
		return sheet.Cell(row, idx)
	}

	rec := internal.CatalogRecord{
		Ticker: text(FieldTicker),
		Name:   text(FieldIssuer),
		Source: n.sourceTag(),
	}
	if rec.Ticker == "" || rec.Name == "" {
		return internal.CatalogRecord{}, false
	}

	rec.Sector = util.OptionalString(text(FieldSector))
	rec.Exchange = util.OptionalString(text(FieldExchange))
	rec.MarketCap = util.ParseDecimal(value(FieldMarketCap))
	rec.ReportDate = util.ParseReportDate(value(FieldReportDate))

	ex, hasExchange := n.matchExchange(util.Deref(rec.Exchange))

	if _, ok := m.Index(FieldCountry); ok {
		rec.CountryCode = n.resolveCountry(text(FieldCountry))
	} else if hasExchange {
		rec.CountryCode = n.resolveCountry(ex.CountryCode)
	}

	if _, ok := m.Index(FieldCurrency); ok {
		rec.Currency = util.OptionalString(text(FieldCurrency))
	} else if hasExchange {
		rec.Currency = util.OptionalString(ex.Currency)
	}

	return rec, true
}

// Block normalizes one exchange block of a wide row. A missing ticker is
// synthesized from the issuer name.
func (n Normalizer) Block(sheet RawSheet, row int, b Block) (internal.CatalogRecord, bool) {
	text := func(idx int) string {
		if idx < 0 {
			return ""
		}
		return sheet.Text(row, idx)
	}

	ticker := text(b.Ticker)
	name := text(b.Issuer)
	if ticker == "" && name == "" {
		return internal.CatalogRecord{}, false
	}
	if ticker == "" {
		ticker = util.SynthesizeTicker(name)
	}
	if ticker == "" || name == "" {
		return internal.CatalogRecord{}, false
	}

	rec := internal.CatalogRecord{
		Ticker:      ticker,
		Name:        name,
		CountryCode: n.resolveCountry(b.Exchange.CountryCode),
		Currency:    util.OptionalString(b.Exchange.Currency),
		Exchange:    util.OptionalString(exchangeLabel(b.Exchange)),
		Source:      n.sourceTag(),
	}
	if text(b.MarketCap) != "" {
		rec.MarketCap = util.ParseDecimal(sheet.Cell(row, b.MarketCap))
	}
	return rec, true
}

func (n Normalizer) sourceTag() string {
	if n.SourceTag == "" {
		return DefaultSourceTag
	}
	return n.SourceTag
}

func (n Normalizer) resolveCountry(value string) *string {
	if n.Countries == nil || strings.TrimSpace(value) == "" {
		return nil
	}
	country, ok := n.Countries.Resolve(value)
	if !ok {
		return nil
	}
	return util.StringPtr(country.Code)
}

var reNonWord = regexp.MustCompile(`[^a-z0-9]+`)

// matchExchange finds the exchange whose tag appears as a word in a free-text
// market label such as "BVL" or "Bolsa de Valores de Lima (BVL)".
func (n Normalizer) matchExchange(label string) (internal.Exchange, bool) {
	words := strings.Fields(reNonWord.ReplaceAllString(util.Normalize(label), " "))
	for _, ex := range n.Exchanges {
		tag := util.Normalize(ex.Tag)
		for _, w := range words {
			if w == tag {
				return ex, true
			}
		}
	}
	return internal.Exchange{}, false
}

func exchangeLabel(ex internal.Exchange) string {
	if ex.Label != "" {
		return ex.Label
	}
	return strings.ToUpper(ex.Tag)
}
