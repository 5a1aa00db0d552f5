package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout  = "02.01.2006"
	clockLayout = "15:04"

	minYear = 1900
	maxYear = 2100

	defaultClock = "00:00"
)

var weekdayNames = map[string][7]string{
	// indexed by time.Weekday, Sunday first
	"de": {"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
}

var monthNames = map[string][12]string{
	"de": {"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"},
	"en": {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}

// SupportedLanguage reports whether weekday and month labels exist for lang.
func SupportedLanguage(lang string) bool {
	_, ok := weekdayNames[lang]
	return ok
}

func labelLanguage(lang string) string {
	if SupportedLanguage(lang) {
		return lang
	}
	return defaultLanguage
}

// ParseDate accepts d.M.yyyy as well as dd.MM.yyyy and returns local midnight
// of that day. Years outside 1900..2100 and impossible days (31.02.) are rejected.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}

	var nums [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]

	if day < 1 || day > 31 || month < 1 || month > 12 || year < minYear || year > maxYear {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// ParseClock accepts H:mm and HH:mm.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 ||
		!isDigits(parts[0]) || !isDigits(parts[1]) {
		return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func NormalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// EntryTime combines the stored date and time of e into a local timestamp.
func EntryTime(e Entry) (time.Time, error) {
	d, err := ParseDate(e.Date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(e.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.Local), nil
}

func WeekdayName(t time.Time, lang string) string {
	return weekdayNames[labelLanguage(lang)][t.Weekday()]
}

// WeekdayFor derives the weekday label of a dd.MM.yyyy date.
func WeekdayFor(date, lang string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return WeekdayName(t, lang), nil
}

func MonthName(m time.Month, lang string) string {
	return monthNames[labelLanguage(lang)][m-1]
}

func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BuildMonth lays out every day of a month with its weekday label and the
// number of entries stored for it. counts is keyed by dd.MM.yyyy.
func BuildMonth(year int, month time.Month, lang string, counts map[string]int) MonthView {
	n := DaysInMonth(year, month)
	view := MonthView{
		Year:  year,
		Month: int(month),
		Label: fmt.Sprintf("%02d %s %d", int(month), MonthName(month, lang), year),
		Days:  make([]Day, 0, n),
	}

	for d := 1; d <= n; d++ {
		t := time.Date(year, month, d, 0, 0, 0, 0, time.Local)
		date := FormatDate(t)
		view.Days = append(view.Days, Day{
			Day:     d,
			Date:    date,
			Weekday: WeekdayName(t, lang),
			Entries: counts[date],
		})
	}
	return view
}

// ShiftDay keeps the day number of date and moves it to year/month, clamping
// to the last day of the target month. An unparsable date starts at day 1.
func ShiftDay(date string, year int, month time.Month) (string, error) {
	if year < minYear || year > maxYear || month < time.January || month > time.December {
		return "", fmt.Errorf("%02d.%d: %w", int(month), year, ErrInvalidDate)
	}

	day := 1
	if t, err := ParseDate(date); err == nil {
		day = t.Day()
	}
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return FormatDate(time.Date(year, month, day, 0, 0, 0, 0, time.Local)), nil
}

// SortEntries orders entries by date and time. Rows that do not parse keep
// their relative order after all valid rows.
func SortEntries(entries []Entry) {
	type keyed struct {
		entry Entry
		at    time.Time
		valid bool
	}
	ks := make([]keyed, len(entries))
	for i, e := range entries {
		at, err := EntryTime(e)
		ks[i] = keyed{entry: e, at: at, valid: err == nil}
	}

	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.valid != b.valid {
			return a.valid
		}
		if !a.valid {
			return false
		}
		return a.at.Before(b.at)
	})

	for i := range ks {
		entries[i] = ks[i].entry
	}
}

// FilterUpcoming returns the entries dated on or after today. Entries with an
// unparsable date are dropped.
func FilterUpcoming(entries []Entry, today time.Time) []Entry {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.Local)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		t, err := ParseDate(e.Date)
		if err != nil {
			continue
		}
		if !t.Before(start) {
			out = append(out, e)
		}
	}
	return out
}
