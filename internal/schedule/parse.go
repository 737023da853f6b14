package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the canonical date layout stored with bookings and slot records.
const ISODate = "2006-01-02"

var (
	// ErrInvalidDate is returned when no accepted date format matches.
	ErrInvalidDate = errors.New("schedule: invalid date")
	// ErrInvalidTime is returned when a lesson time cannot be read.
	ErrInvalidTime = errors.New("schedule: invalid time")
	// ErrNoWeekday is returned when a day/time answer names no weekday.
	ErrNoWeekday = errors.New("schedule: no weekday")
)

// DateFormatHint is shown to people whose date could not be read.
const DateFormatHint = "Please write the date as dd/mm/yyyy (e.g. 14/10/2026) or as day and month (e.g. 14 October)."

var (
	numericDatePattern = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})$`)
	isoDatePattern     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	namedDatePattern   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+|di\s+)?(\p{L}+)\.?(?:,?\s+(\d{4}))?$`)
	clockPattern       = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[:.](\d{2})(?:$|[^\d])`)
)

var monthNames = map[time.Month][]string{
	time.January:   {"january", "gennaio"},
	time.February:  {"february", "febbraio"},
	time.March:     {"march", "marzo"},
	time.April:     {"april", "aprile"},
	time.May:       {"may", "maggio"},
	time.June:      {"june", "giugno"},
	time.July:      {"july", "luglio"},
	time.August:    {"august", "agosto"},
	time.September: {"september", "settembre"},
	time.October:   {"october", "ottobre"},
	time.November:  {"november", "novembre"},
	time.December:  {"december", "dicembre"},
}

var weekdayNames = map[time.Weekday][]string{
	time.Monday:    {"monday", "lunedi"},
	time.Tuesday:   {"tuesday", "martedi"},
	time.Wednesday: {"wednesday", "mercoledi"},
	time.Thursday:  {"thursday", "giovedi"},
	time.Friday:    {"friday", "venerdi"},
	time.Saturday:  {"saturday", "sabato"},
	time.Sunday:    {"sunday", "domenica"},
}

// ParseDate reads a calendar date in loc. Formats are tried in order:
// d/m/yyyy (also with - or .), yyyy-mm-dd, then "day monthname [year]" in English
// or Italian. A missing year means the year of ref. Rolled-over dates such as
// 31/02 are rejected rather than normalized.
func ParseDate(text string, ref time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	input := strings.TrimSpace(foldAccents(strings.ToLower(text)))
	input = stripLeadingWeekday(input)

	if m := numericDatePattern.FindStringSubmatch(input); m != nil {
		return buildDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), loc, text)
	}
	if m := isoDatePattern.FindStringSubmatch(input); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), loc, text)
	}
	if m := namedDatePattern.FindStringSubmatch(input); m != nil {
		month, ok := parseMonth(m[2])
		if !ok {
			return time.Time{}, fmt.Errorf("%w: unknown month %q", ErrInvalidDate, m[2])
		}
		year := ref.In(loc).Year()
		if m[3] != "" {
			year = atoi(m[3])
		}
		return buildDate(year, int(month), atoi(m[1]), loc, text)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
}

func buildDate(year, month, day int, loc *time.Location, original string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, original)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, original)
	}
	return d, nil
}

func stripLeadingWeekday(input string) string {
	fields := strings.Fields(strings.ReplaceAll(input, ",", " "))
	if len(fields) < 2 {
		return input
	}
	if _, ok := ParseWeekday(fields[0]); ok {
		return strings.Join(fields[1:], " ")
	}
	return input
}

func parseMonth(token string) (time.Month, bool) {
	token = strings.TrimSuffix(token, ".")
	if len(token) < 3 {
		return 0, false
	}
	for month, names := range monthNames {
		for _, name := range names {
			if strings.HasPrefix(name, token) {
				return month, true
			}
		}
	}
	return 0, false
}

// ParseWeekday reads an English or Italian weekday name, full or abbreviated
// to at least three letters. Accents are optional.
func ParseWeekday(token string) (time.Weekday, bool) {
	token = strings.Trim(foldAccents(strings.ToLower(strings.TrimSpace(token))), ".,;:!?")
	if len(token) < 3 {
		return 0, false
	}
	for wd, names := range weekdayNames {
		for _, name := range names {
			if strings.HasPrefix(name, token) {
				return wd, true
			}
		}
	}
	return 0, false
}

// ParseClock normalizes H:MM, HH:MM or H.MM to HH:MM.
func ParseClock(text string) (string, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, text)
	}
	hour, minute := atoi(m[1]), atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, text)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ParseDayTime extracts a weekday and a lesson time from an answer such as
// "monday 9:30" or "giovedì alle 19.00".
func ParseDayTime(text string) (time.Weekday, string, error) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	weekday, found := time.Sunday, false
	for _, field := range fields {
		if wd, ok := ParseWeekday(field); ok {
			weekday, found = wd, true
			break
		}
	}
	if !found {
		return 0, "", fmt.Errorf("%w: %q", ErrNoWeekday, text)
	}
	hhmm, err := ParseClock(text)
	if err != nil {
		return weekday, "", err
	}
	return weekday, hhmm, nil
}

// NextOccurrence returns the first date on or after from that falls on wd.
func NextOccurrence(wd time.Weekday, from time.Time) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	offset := (int(wd) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
