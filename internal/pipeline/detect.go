package pipeline

import (
	"nuam/internal"
	"nuam/internal/util"
)

const (
	DefaultScanLimit = 200

	minHeaderKeywordHits = 2
	minHeaderCells       = 3
)

var baseHeaderKeywords = []string{
	"nemo", "ticker", "emisor", "issuer", "nombre", "pais", "country", "moneda",
	"currency", "sector", "market", "cap", "capital", "bursatil",
}

// HeaderKeywords returns the base header vocabulary plus the tag of every
// configured exchange.
func HeaderKeywords(exchanges []internal.Exchange) []string {
	out := append([]string(nil), baseHeaderKeywords...)
	for _, ex := range exchanges {
		out = append(out, util.Normalize(ex.Tag))
	}
	return out
}

// FindHeaderRow returns the first row within scanLimit that has at least two
// cells hitting a keyword and at least three non-empty cells. Failing that it
// returns the first row with three non-empty cells, and 0 as a last resort.
func FindHeaderRow(sheet RawSheet, scanLimit int, keywords []string) int {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	limit := min(scanLimit, len(sheet.Rows))

	for i := 0; i < limit; i++ {
		hits, nonEmpty := scoreHeaderRow(sheet.NormalizedRow(i), keywords)
		if hits >= minHeaderKeywordHits && nonEmpty >= minHeaderCells {
			return i
		}
	}
	for i := 0; i < limit; i++ {
		if _, nonEmpty := scoreHeaderRow(sheet.NormalizedRow(i), keywords); nonEmpty >= minHeaderCells {
			return i
		}
	}
	return 0
}

func scoreHeaderRow(cells []string, keywords []string) (hits, nonEmpty int) {
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		nonEmpty++
		if util.ContainsAny(cell, keywords...) {
			hits++
		}
	}
	return hits, nonEmpty
}
