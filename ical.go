package main

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
)

const (
	icsProductID     = "-//kalender//kalender//EN"
	icsEventDuration = time.Hour
)

var defaultSummary = map[string]string{
	"de": "Termin",
	"en": "Entry",
}

// entryUID is stable for identical rows so repeated exports update rather
// than duplicate events in subscribing clients.
func entryUID(e Entry) string {
	h := sha1.New()
	for _, f := range []string{e.Date, e.Time, e.AdditionalInfo} {
		io.WriteString(h, f)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12]) + "@kalender"
}

// WriteICS serializes entries as a VCALENDAR. Rows whose date or time does
// not parse are skipped and logged.
func WriteICS(w io.Writer, entries []Entry, lang string, now time.Time, log zerolog.Logger) (int, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	written := 0
	for _, e := range entries {
		start, err := EntryTime(e)
		if err != nil {
			log.Warn().Err(err).Str("date", e.Date).Str("time", e.Time).Msg("skipping entry in export")
			continue
		}

		ev := cal.AddEvent(entryUID(e))
		ev.SetDtStampTime(now)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(icsEventDuration))

		summary := Summary(e.AdditionalInfo, 60)
		if summary == "" {
			summary = defaultSummary[labelLanguage(lang)]
		}
		ev.SetSummary(summary)
		if e.AdditionalInfo != "" {
			ev.SetDescription(e.AdditionalInfo)
		}
		written++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, fmt.Errorf("error writing calendar: %w", err)
	}
	return written, nil
}

// ReadICS converts every VEVENT into an entry dated by its DTSTART in local
// time. DESCRIPTION becomes the entry text, SUMMARY when there is none.
func ReadICS(r io.Reader, lang string, log zerolog.Logger) ([]Entry, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing calendar: %w", err)
	}

	var entries []Entry
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			start, err = ev.GetAllDayStartAt()
		}
		if err != nil {
			log.Warn().Err(err).Str("uid", ev.Id()).Msg("skipping event without start")
			continue
		}
		start = start.In(time.Local)
		if start.Year() < minYear || start.Year() > maxYear {
			log.Warn().Str("uid", ev.Id()).Time("start", start).Msg("skipping event outside supported years")
			continue
		}

		info := ""
		if p := ev.GetProperty(ical.ComponentPropertyDescription); p != nil {
			info = p.Value
		}
		if info == "" {
			if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
				info = p.Value
			}
		}

		entries = append(entries, Entry{
			Date:           FormatDate(start),
			DayOfWeek:      WeekdayName(start, lang),
			Time:           start.Format(clockLayout),
			AdditionalInfo: info,
		})
	}

	if len(entries) == 0 {
		return nil, errors.New("calendar contains no usable events")
	}
	return entries, nil
}
