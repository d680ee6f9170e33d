package util

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

// ParseDecimal reads a locale-formatted number such as "1,234.50" or
// "2 500". Anything that does not parse yields nil.
func ParseDecimal(value any) *decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return &v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		d := decimal.NewFromFloat(v)
		return &d
	case int:
		d := decimal.NewFromInt(int64(v))
		return &d
	case string:
		compact := strings.Map(func(r rune) rune {
			if r == ',' || unicode.IsSpace(r) {
				return -1
			}
			return r
		}, v)
		if compact == "" {
			return nil
		}
		d, err := decimal.NewFromString(compact)
		if err != nil {
			return nil
		}
		return &d
	default:
		return ParseDecimal(fmt.Sprint(v))
	}
}

// ParseReportDate accepts a native time value or text whose first ten
// characters are an ISO date.
func ParseReportDate(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		d := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	case string:
		s := strings.TrimSpace(v)
		if len(s) > len(isoDate) {
			s = s[:len(isoDate)]
		}
		d, err := time.Parse(isoDate, s)
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}

func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(isoDate)
	return &s
}
