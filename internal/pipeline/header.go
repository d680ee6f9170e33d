package pipeline

import (
	"nuam/internal/util"
)

const (
	HeaderSingle   = "A"
	HeaderCombined = "B"
)

// HeaderCandidate is one interpretation of a sheet's header: the column
// names, their normalized form, and the first row holding data under it.
type HeaderCandidate struct {
	Label      string
	Row        int
	Names      []string
	Normalized []string
	DataStart  int
}

// HeaderCandidates builds both header readings for a detected header row:
// A takes the row alone, B merges it with the row below so that a header split
// over two physical rows ("Ticker" over "BCS") reads as one label.
func HeaderCandidates(sheet RawSheet, headerRow int) (single, combined HeaderCandidate) {
	width := sheet.Width()
	single = HeaderCandidate{Label: HeaderSingle, Row: headerRow, Names: make([]string, width), DataStart: headerRow + 1}
	combined = HeaderCandidate{Label: HeaderCombined, Row: headerRow, Names: make([]string, width), DataStart: headerRow + 2}

	for col := 0; col < width; col++ {
		top := sheet.Text(headerRow, col)
		bottom := sheet.Text(headerRow+1, col)
		single.Names[col] = top

		switch {
		case top != "" && bottom != "" && util.Normalize(top) != util.Normalize(bottom):
			combined.Names[col] = top + " " + bottom
		case top != "":
			combined.Names[col] = top
		default:
			combined.Names[col] = bottom
		}
	}

	single.Normalized = normalizeAll(single.Names)
	combined.Normalized = normalizeAll(combined.Names)
	return single, combined
}

func normalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = util.Normalize(n)
	}
	return out
}
