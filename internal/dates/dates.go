// Package dates normalizes heterogeneous date cells into calendar dates and
// renders them in the French display form used by screens and exports.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v2"
)

// Placeholder is rendered for missing or unparseable dates.
const Placeholder = "N/A"

// Spreadsheet serial bounds: 1900-01-01 through 9999-12-31.
const (
	minSerial = 1
	maxSerial = 2958465
)

// monthNames is indexed by time.Month-1.
var monthNames = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// monthLookup accepts the display names plus their unaccented spellings.
var monthLookup = map[string]time.Month{
	"janvier": time.January, "février": time.February, "fevrier": time.February,
	"mars": time.March, "avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "août": time.August, "aout": time.August,
	"septembre": time.September, "octobre": time.October, "novembre": time.November,
	"décembre": time.December, "decembre": time.December,
	"janv": time.January, "févr": time.February, "fevr": time.February,
	"avr": time.April, "juil": time.July, "sept": time.September,
	"oct": time.October, "nov": time.November, "déc": time.December, "dec": time.December,
}

var (
	localeRe  = regexp.MustCompile(`^(\d{1,2})(?:er)?\s+([\p{L}]+)\.?\s+(\d{4})$`)
	numericRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"20060102",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"02-Jan-06",
}

var dayFirstLayouts = []string{
	"2/1/2006", "2/1/2006 15:04:05", "2/1/2006 15:04",
	"2-1-2006", "2-1-2006 15:04:05",
	"2.1.2006", "2.1.2006 15:04:05",
	"2/1/06",
}

var monthFirstLayouts = []string{
	"1/2/2006", "1/2/2006 15:04:05", "1/2/2006 15:04",
	"1-2-2006", "1-2-2006 15:04:05",
	"1.2.2006", "1.2.2006 15:04:05",
	"1/2/06",
}

// Parser converts raw cell values to calendar dates.
type Parser struct {
	// DayFirst resolves ambiguous numeric forms such as 05/11/2023 as
	// day/month. The other order is still tried when the first fails.
	DayFirst bool
}

// Default is the parser used by the package-level helpers.
var Default = Parser{DayFirst: true}

// Parse converts raw to a date using the default parser.
func Parse(raw any) (time.Time, bool) {
	return Default.Parse(raw)
}

// Parse converts raw to a date at midnight UTC. It returns false for missing
// or unparseable input and never panics.
func (p Parser) Parse(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return truncate(v), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return p.Parse(*v)
	case float64:
		return fromSerial(v)
	case float32:
		return fromSerial(float64(v))
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return p.parseText(v)
	case []byte:
		return p.parseText(string(v))
	case fmt.Stringer:
		return p.parseText(v.String())
	default:
		return time.Time{}, false
	}
}

func (p Parser) parseText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if numericRe.MatchString(s) {
		return parseNumeric(s)
	}

	if t, ok := parseLocale(s); ok {
		return t, true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}

	first, second := dayFirstLayouts, monthFirstLayouts
	if !p.DayFirst {
		first, second = second, first
	}
	for _, layouts := range [][]string{first, second} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncate(t), true
			}
		}
	}

	return time.Time{}, false
}

// parseNumeric handles bare numbers: a four-digit year, a compact
// YYYYMMDD date, or a spreadsheet serial.
func parseNumeric(s string) (time.Time, bool) {
	if len(s) == 4 {
		year, err := strconv.Atoi(s)
		if err != nil || year < 1000 {
			return time.Time{}, false
		}
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	if len(s) == 8 && !strings.Contains(s, ".") {
		if t, err := time.Parse("20060102", s); err == nil {
			return t, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return fromSerial(f)
}

func parseLocale(s string) (time.Time, bool) {
	m := localeRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := monthLookup[m[2]]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 février); reject it instead.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func fromSerial(f float64) (time.Time, bool) {
	if f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	return truncate(xlsx.TimeFromExcelTime(f, false)), true
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Format renders t as "<day> <month> <year>", e.g. "15 mars 2024".
// The zero time renders as Placeholder.
func Format(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// FormatValue parses v with the default parser and formats the result.
func FormatValue(v any) string {
	t, ok := Parse(v)
	if !ok {
		return Placeholder
	}
	return Format(t)
}

// MonthName returns the French name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}
