package pipeline

import (
	"strings"

	"nuam/internal"
	"nuam/internal/util"
)

const issuerScanWidth = 3

var (
	issuerTokens = []string{"emisor", "issuer", "nombre"}
	capTokens    = []string{"cap", "capital"}
)

// Block is one exchange's column group in a wide workbook, where each row
// lists up to one company per exchange side by side. Unresolved indices are -1.
type Block struct {
	Exchange  internal.Exchange
	Ticker    int
	Issuer    int
	MarketCap int
}

func (b Block) resolved() bool {
	return b.Ticker >= 0 || b.Issuer >= 0 || b.MarketCap >= 0
}

func (b Block) emptyAt(sheet RawSheet, row int) bool {
	return sheet.Text(row, b.Ticker) == "" && sheet.Text(row, b.Issuer) == ""
}

// ResolveBlocks finds, per exchange, the ticker column tagged with that
// exchange and the market-cap and issuer columns around it.
func ResolveBlocks(cols []string, exchanges []internal.Exchange) []Block {
	var out []Block
	for _, ex := range exchanges {
		tag := util.Normalize(ex.Tag)
		b := Block{Exchange: ex, Ticker: -1, Issuer: -1, MarketCap: -1}

		b.Ticker = firstColumn(cols, func(c string) bool {
			return strings.Contains(c, "ticker") && strings.Contains(c, tag)
		})
		if b.Ticker >= 0 {
			b.MarketCap = blockMarketCap(cols, b.Ticker, tag)
			b.Issuer = blockIssuer(cols, b.Ticker)
		}

		if b.resolved() {
			out = append(out, b)
		}
	}
	return out
}

// hasTaggedTicker reports whether any column names a ticker for one of the
// exchanges, which marks a header reading as block-shaped.
func hasTaggedTicker(cols []string, exchanges []internal.Exchange) bool {
	for _, ex := range exchanges {
		tag := util.Normalize(ex.Tag)
		for _, c := range cols {
			if strings.Contains(c, "ticker") && strings.Contains(c, tag) {
				return true
			}
		}
	}
	return false
}

func blockMarketCap(cols []string, ticker int, tag string) int {
	for _, k := range []int{ticker + 1, ticker + 2} {
		if k < len(cols) && util.ContainsAny(cols[k], capTokens...) {
			return k
		}
	}
	return firstColumn(cols, func(c string) bool {
		return util.ContainsAny(c, capTokens...) && strings.Contains(c, tag)
	})
}

func blockIssuer(cols []string, ticker int) int {
	for k := ticker - 1; k >= 0 && k >= ticker-issuerScanWidth; k-- {
		if util.ContainsAny(cols[k], issuerTokens...) {
			return k
		}
	}
	return -1
}

func firstColumn(cols []string, match func(string) bool) int {
	for i, c := range cols {
		if c != "" && match(c) {
			return i
		}
	}
	return -1
}
