package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"nuam/internal"
	"nuam/internal/util"
)

type Layout string

const (
	LayoutTable Layout = "table"
	LayoutWide  Layout = "wide"
)

var ErrNoUsableSheet = errors.New("no sheet yielded a usable table")

type Options struct {
	Exchanges []internal.Exchange
	Countries CountryResolver
	SourceTag string
	ScanLimit int
	// Keywords overrides the header-detection vocabulary.
	Keywords []string
}

// Ingestion is what one pass over a workbook produced.
type Ingestion struct {
	Sheet       string
	Layout      Layout
	Header      string
	HeaderRow   int
	Columns     []string
	Blocks      []Block
	Records     []internal.CatalogRecord
	Skipped     int
	Diagnostics []string
}

// Ingest walks the sheets in priority order and extracts records from the
// first one that has a usable column layout. Later sheets are not read once
// one succeeds. It touches neither storage nor the event stream.
func Ingest(src SheetSource, opts Options) (Ingestion, error) {
	names := OrderSheets(src.SheetNames())
	var diagnostics []string

	for _, name := range names {
		sheet, err := src.Sheet(name)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("[%s] unreadable: %v", name, err))
			continue
		}
		result, err := ingestSheet(sheet, opts)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("[%s] %v", name, err))
			continue
		}
		result.Diagnostics = append(diagnostics, result.Diagnostics...)
		return result, nil
	}

	return Ingestion{Diagnostics: diagnostics}, fmt.Errorf("%w (sheets tried: %s)", ErrNoUsableSheet, strings.Join(names, ", "))
}

// OrderSheets puts sheets whose name mentions both a ticker and a market cap
// first and sorts the rest by name.
func OrderSheets(names []string) []string {
	out := append([]string(nil), names...)
	priority := func(name string) int {
		n := util.Normalize(name)
		if util.ContainsAny(n, "nemo", "ticker") && strings.Contains(n, "cap") {
			return 0
		}
		return 1
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i]), priority(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

func ingestSheet(sheet RawSheet, opts Options) (Ingestion, error) {
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = HeaderKeywords(opts.Exchanges)
	}
	headerRow := FindHeaderRow(sheet, opts.ScanLimit, keywords)
	single, combined := HeaderCandidates(sheet, headerRow)

	n := Normalizer{Exchanges: opts.Exchanges, Countries: opts.Countries, SourceTag: opts.SourceTag}

	wide := single
	if hasTaggedTicker(combined.Normalized, opts.Exchanges) {
		wide = combined
	}
	if blocks := ResolveBlocks(wide.Normalized, opts.Exchanges); len(blocks) > 0 {
		result := newIngestion(sheet, LayoutWide, wide)
		result.Blocks = blocks
		for row := wide.DataStart; row < len(sheet.Rows); row++ {
			if sheet.BlankRow(row) {
				continue
			}
			result.addWideRow(n, sheet, row, blocks)
		}
		result.flagDuplicates()
		return result, nil
	}

	header, mapping, err := SelectMapping(single, combined)
	if err != nil {
		return Ingestion{}, err
	}
	result := newIngestion(sheet, LayoutTable, header)
	for row := header.DataStart; row < len(sheet.Rows); row++ {
		if sheet.BlankRow(row) {
			continue
		}
		result.add(n.Table(sheet, row, mapping))
	}
	result.flagDuplicates()
	return result, nil
}

func newIngestion(sheet RawSheet, layout Layout, header HeaderCandidate) Ingestion {
	return Ingestion{
		Sheet:     sheet.Name,
		Layout:    layout,
		Header:    header.Label,
		HeaderRow: header.Row,
		Columns:   header.Names,
	}
}

func (in *Ingestion) add(rec internal.CatalogRecord, ok bool) {
	if !ok {
		in.Skipped++
		return
	}
	in.Records = append(in.Records, rec)
}

// addWideRow normalizes every block of a wide row. A block with neither
// ticker nor issuer is not a skip on its own; a row where every block is
// empty counts once.
func (in *Ingestion) addWideRow(n Normalizer, sheet RawSheet, row int, blocks []Block) {
	populated := 0
	for _, b := range blocks {
		if b.emptyAt(sheet, row) {
			continue
		}
		populated++
		in.add(n.Block(sheet, row, b))
	}
	if populated == 0 {
		in.Skipped++
	}
}

// flagDuplicates notes tickers produced by more than one row; the catalog
// keeps whichever is upserted last.
func (in *Ingestion) flagDuplicates() {
	counts := map[string]int{}
	var order []string
	for _, rec := range in.Records {
		if counts[rec.Ticker] == 0 {
			order = append(order, rec.Ticker)
		}
		counts[rec.Ticker]++
	}
	for _, ticker := range order {
		if counts[ticker] > 1 {
			in.Diagnostics = append(in.Diagnostics, fmt.Sprintf("[%s] ticker %s appears in %d rows; last row wins", in.Sheet, ticker, counts[ticker]))
		}
	}
}
