package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	repeatHorizonYears = 5
	maxRepeat          = 500
)

// ExpandRepeat turns first into one entry per occurrence of the RFC 5545
// rule, starting at first's own date and time. Occurrences are bounded to
// five years and 500 rows so rules without COUNT or UNTIL terminate.
func ExpandRepeat(first Entry, rule, lang string) ([]Entry, error) {
	start, err := EntryTime(first)
	if err != nil {
		return nil, err
	}

	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %v", rule, ErrInvalidRepeat, err)
	}
	r.DTStart(start)

	horizon := start.AddDate(repeatHorizonYears, 0, 0)
	next := r.Iterator()
	var occurrences []time.Time
	for len(occurrences) < maxRepeat {
		at, ok := next()
		if !ok || at.After(horizon) {
			break
		}
		if at.Before(start) {
			continue
		}
		occurrences = append(occurrences, at)
	}
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%q yields no dates: %w", rule, ErrInvalidRepeat)
	}

	entries := make([]Entry, 0, len(occurrences))
	for _, at := range occurrences {
		date := FormatDate(at)
		dow, err := WeekdayFor(date, lang)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Date:           date,
			DayOfWeek:      dow,
			Time:           at.Format(clockLayout),
			AdditionalInfo: first.AdditionalInfo,
		})
	}
	return entries, nil
}
