package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"nuam/internal/util"
)

// RawSheet is an untyped grid as read from a workbook. Cells hold string,
// time.Time or nil; rows may be ragged.
type RawSheet struct {
	Name string
	Rows [][]any
}

// SheetSource is anything that can hand out named sheets: a workbook on
// disk, an HTML export, or an in-memory fixture.
type SheetSource interface {
	SheetNames() []string
	Sheet(name string) (RawSheet, error)
}

// Sheets is an in-memory SheetSource.
type Sheets []RawSheet

func (s Sheets) SheetNames() []string {
	names := make([]string, 0, len(s))
	for _, sh := range s {
		names = append(names, sh.Name)
	}
	return names
}

func (s Sheets) Sheet(name string) (RawSheet, error) {
	for _, sh := range s {
		if sh.Name == name {
			return sh, nil
		}
	}
	return RawSheet{}, fmt.Errorf("sheet not found: %s", name)
}

func (s RawSheet) Width() int {
	width := 0
	for _, row := range s.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func (s RawSheet) Cell(row, col int) any {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return nil
	}
	return s.Rows[row][col]
}

// Text returns the trimmed text of a cell; absent, NaN-like and non-finite
// cells are "".
func (s RawSheet) Text(row, col int) string {
	return cellText(s.Cell(row, col))
}

func (s RawSheet) BlankRow(row int) bool {
	if row < 0 || row >= len(s.Rows) {
		return true
	}
	for col := range s.Rows[row] {
		if s.Text(row, col) != "" {
			return false
		}
	}
	return true
}

// NormalizedRow returns the normalized text of every cell of a row, padded to
// the sheet width.
func (s RawSheet) NormalizedRow(row int) []string {
	out := make([]string, s.Width())
	for col := range out {
		out[col] = util.Normalize(s.Text(row, col))
	}
	return out
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if isNaNLike(s) {
			return ""
		}
		return s
	case time.Time:
		return t.Format("2006-01-02")
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func isNaNLike(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "#n/a", "#na":
		return true
	}
	return false
}
