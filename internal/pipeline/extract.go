package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

var (
	ErrFileNotFound       = errors.New("file not found")
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
)

// Workbook is a SheetSource backed by an open file.
type Workbook interface {
	SheetSource
	Close() error
}

// OpenWorkbook opens an .xlsx workbook or an HTML-table export saved with a
// spreadsheet extension.
func OpenWorkbook(path string) (Workbook, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	return OpenWorkbookBytes(blob)
}

func OpenWorkbookBytes(blob []byte) (Workbook, error) {
	if looksLikeHTML(blob) {
		sheets, err := parseHTMLTables(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
		}
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: no tables in html document", ErrUnreadableWorkbook)
		}
		return htmlWorkbook{Sheets: sheets}, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	wb := &xlsxWorkbook{f: f, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

type xlsxWorkbook struct {
	f          *excelize.File
	date1904   bool
	dateStyles map[int]bool
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.f.GetSheetList()
}

func (w *xlsxWorkbook) Sheet(name string) (RawSheet, error) {
	rows, err := w.f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return RawSheet{}, err
	}

	out := RawSheet{Name: name, Rows: make([][]any, len(rows))}
	for r, row := range rows {
		cells := make([]any, len(row))
		for c, raw := range row {
			cells[c] = w.cellValue(name, r, c, raw)
		}
		out.Rows[r] = cells
	}
	return out, nil
}

func (w *xlsxWorkbook) Close() error {
	return w.f.Close()
}

// cellValue turns date-formatted serial numbers into time.Time and keeps
// everything else as raw text.
func (w *xlsxWorkbook) cellValue(sheet string, row, col int, raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return raw
	}
	styleID, err := w.f.GetCellStyle(sheet, cell)
	if err != nil || !w.isDateStyle(styleID) {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, w.date1904)
	if err != nil {
		return raw
	}
	return t
}

func (w *xlsxWorkbook) isDateStyle(styleID int) bool {
	if known, ok := w.dateStyles[styleID]; ok {
		return known
	}
	isDate := false
	if style, err := w.f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	w.dateStyles[styleID] = isDate
	return isDate
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

var reFormatLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)

func isDateFormatCode(code string) bool {
	code = strings.ToLower(reFormatLiterals.ReplaceAllString(code, ""))
	if code == "" || code == "general" {
		return false
	}
	return strings.ContainsAny(code, "yd")
}

type htmlWorkbook struct {
	Sheets
}

func (htmlWorkbook) Close() error { return nil }

func looksLikeHTML(blob []byte) bool {
	head := blob
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	lower := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(lower, "<") &&
		(strings.Contains(lower, "<html") || strings.Contains(lower, "<table") || strings.Contains(lower, "<!doctype"))
}

// parseHTMLTables reads every <table> as one sheet named "Table N". Cells
// spanning several columns are padded so later columns keep their position.
func parseHTMLTables(blob []byte) (Sheets, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}

	var out Sheets
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		sheet := RawSheet{Name: fmt.Sprintf("Table %d", i+1)}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []any
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
				span, _ := strconv.Atoi(cell.AttrOr("colspan", "1"))
				for k := 1; k < span; k++ {
					cells = append(cells, nil)
				}
			})
			sheet.Rows = append(sheet.Rows, cells)
		})
		if len(sheet.Rows) > 0 {
			out = append(out, sheet)
		}
	})
	return out, nil
}

var reSpaces = regexp.MustCompile(`\s+`)

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
