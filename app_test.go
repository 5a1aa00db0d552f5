package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePicker returns fixed choices and records what it was offered.
type fakePicker struct {
	entryIndex int
	dayIndex   int
	err        error

	offeredEntries []Entry
	offeredDays    []Day
}

func (p *fakePicker) PickEntry(prompt string, entries []Entry) (Entry, error) {
	p.offeredEntries = entries
	if p.err != nil {
		return Entry{}, p.err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoEntries
	}
	return entries[p.entryIndex], nil
}

func (p *fakePicker) PickDay(prompt string, days []Day) (Day, error) {
	p.offeredDays = days
	if p.err != nil {
		return Day{}, p.err
	}
	return days[p.dayIndex], nil
}

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local)

func newTestApp(t *testing.T) (*App, *bytes.Buffer, *fakePicker) {
	t.Helper()

	repo := newTestRepo(t)
	cfg := DefaultConfig(t.TempDir())
	out := &bytes.Buffer{}
	picker := &fakePicker{}

	app := NewApp(repo, cfg, out, picker, zerolog.Nop())
	app.now = func() time.Time { return testNow }
	return app, out, picker
}

func strPtr(s string) *string {
	return &s
}

func TestApp_NewEntryDefaults(t *testing.T) {
	app, _, _ := newTestApp(t)

	e, err := app.NewEntry(EntryInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "00:00"}
	if e != want {
		t.Errorf("expected %+v, got %+v", want, e)
	}
}

func TestApp_NewEntryNormalizes(t *testing.T) {
	app, _, _ := newTestApp(t)

	e, err := app.NewEntry(EntryInput{
		Date:           strPtr("1.1.2024"),
		Time:           strPtr("9:30"),
		AdditionalInfo: strPtr("Neujahr"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Entry{Date: "01.01.2024", DayOfWeek: "Montag", Time: "09:30", AdditionalInfo: "Neujahr"}
	if e != want {
		t.Errorf("expected %+v, got %+v", want, e)
	}

	e, err = app.NewEntry(EntryInput{DayOfWeek: strPtr("Feiertag")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.DayOfWeek != "Feiertag" {
		t.Errorf("expected explicit weekday to be kept, got %q", e.DayOfWeek)
	}
}

func TestApp_NewEntryValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	if _, err := app.NewEntry(EntryInput{Date: strPtr("30.02.2024")}); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := app.NewEntry(EntryInput{Time: strPtr("25:00")}); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
}

func TestApp_AddAndDay(t *testing.T) {
	app, out, _ := newTestApp(t)

	err := app.Add(EntryInput{Time: strPtr("14:00"), AdditionalInfo: strPtr("Friseur")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "Entry added: 15.03.2024 (Freitag) 14:00\n" {
		t.Errorf("unexpected output %q", got)
	}

	if err := app.Add(EntryInput{Time: strPtr("08:15"), AdditionalInfo: strPtr("Bäcker\nBrötchen")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out.Reset()
	if err := app.Day("15.3.2024"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "15.03.2024, Freitag\n\n") {
		t.Errorf("unexpected heading in %q", got)
	}
	first := strings.Index(got, "08:15")
	second := strings.Index(got, "14:00")
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected entries sorted by time, got %q", got)
	}
	if strings.Contains(got, "Brötchen") {
		t.Errorf("expected only the first line of the text, got %q", got)
	}
}

func TestApp_DayWithoutEntries(t *testing.T) {
	app, out, _ := newTestApp(t)

	if err := app.Day("16.03.2024"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "16.03.2024, Samstag\n\nNo entries.\n" {
		t.Errorf("unexpected output %q", got)
	}

	if err := app.Day("32.03.2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestApp_AddRepeat(t *testing.T) {
	app, out, _ := newTestApp(t)

	err := app.Add(EntryInput{Time: strPtr("18:00"), AdditionalInfo: strPtr("Chor"), Repeat: "FREQ=WEEKLY;COUNT=3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "3 entries added: 15.03.2024 18:00 to 29.03.2024 18:00\n" {
		t.Errorf("unexpected output %q", got)
	}

	entries, err := app.Entries(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if err := app.Add(EntryInput{Repeat: "FREQ=SOMETIMES"}); !errors.Is(err, ErrInvalidRepeat) {
		t.Errorf("expected ErrInvalidRepeat, got %v", err)
	}
}

func TestApp_EntriesUpcomingOnly(t *testing.T) {
	app, _, _ := newTestApp(t)
	mustCreate(t, app.repo,
		Entry{Date: "16.03.2024", DayOfWeek: "Samstag", Time: "09:00", AdditionalInfo: "future"},
		Entry{Date: "14.03.2024", DayOfWeek: "Donnerstag", Time: "09:00", AdditionalInfo: "past"},
		Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "07:00", AdditionalInfo: "today"},
	)

	upcoming, err := app.Entries(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].AdditionalInfo != "today" || upcoming[1].AdditionalInfo != "future" {
		t.Errorf("unexpected upcoming entries %+v", upcoming)
	}

	all, err := app.Entries(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].AdditionalInfo != "past" {
		t.Errorf("unexpected entries %+v", all)
	}
}

func TestApp_List(t *testing.T) {
	app, out, _ := newTestApp(t)

	if err := app.List(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "No upcoming entries, use --all to include past ones.\n" {
		t.Errorf("unexpected output %q", got)
	}

	mustCreate(t, app.repo,
		Entry{Date: "16.03.2024", DayOfWeek: "Samstag", Time: "09:00", AdditionalInfo: "a"},
		Entry{Date: "16.03.2024", DayOfWeek: "Samstag", Time: "11:00", AdditionalInfo: "b"},
	)

	out.Reset()
	if err := app.List(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if strings.Count(got, "16.03.2024") != 1 {
		t.Errorf("expected the date to be printed once per group, got %q", got)
	}
	if !strings.Contains(got, "Total:") || !strings.Contains(got, "2") {
		t.Errorf("expected total footer, got %q", got)
	}
}

func TestApp_Month(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo,
		Entry{Date: "15.03.2024", Time: "09:00"},
		Entry{Date: "15.3.2024", Time: "10:00"},
		Entry{Date: "02.04.2024", Time: "10:00"},
	)

	if err := app.Month(2024, time.March, "15.03.2024", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(out.String(), "\n")
	if lines[0] != "03 März 2024" {
		t.Errorf("unexpected label %q", lines[0])
	}

	var marked string
	for _, l := range lines {
		if strings.HasPrefix(l, ">") {
			marked = l
		}
	}
	if !strings.Contains(marked, "15. Freitag") || !strings.Contains(marked, "2") {
		t.Errorf("expected 15th to be marked with 2 entries, got %q", marked)
	}
	if last := lines[len(lines)-2]; !strings.Contains(last, "Total:") || !strings.Contains(last, "2") {
		t.Errorf("unexpected footer %q", last)
	}

	if err := app.Month(2024, 13, "", false); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestApp_MonthPick(t *testing.T) {
	app, out, picker := newTestApp(t)
	mustCreate(t, app.repo, Entry{Date: "02.04.2024", DayOfWeek: "Dienstag", Time: "10:00", AdditionalInfo: "Termin"})
	picker.dayIndex = 1

	if err := app.Month(2024, time.April, "", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picker.offeredDays) != 30 {
		t.Errorf("expected 30 days offered, got %d", len(picker.offeredDays))
	}
	if !strings.HasPrefix(out.String(), "02.04.2024, Dienstag") {
		t.Errorf("expected picked day to be shown, got %q", out.String())
	}
}

func TestApp_ResolveEntry(t *testing.T) {
	app, _, picker := newTestApp(t)
	mustCreate(t, app.repo,
		Entry{Date: "15.03.2024", Time: "12:00", AdditionalInfo: "noon"},
		Entry{Date: "15.03.2024", Time: "08:00", AdditionalInfo: "morning"},
		Entry{Date: "16.03.2024", Time: "08:00", AdditionalInfo: "single"},
	)

	e, err := app.ResolveEntry([]string{"15.3.2024", "8:00"}, "")
	if err != nil || e.AdditionalInfo != "morning" {
		t.Errorf("expected morning, got %+v %v", e, err)
	}

	e, err = app.ResolveEntry([]string{"16.03.2024"}, "")
	if err != nil || e.AdditionalInfo != "single" {
		t.Errorf("expected single entry without picker, got %+v %v", e, err)
	}
	if picker.offeredEntries != nil {
		t.Error("picker should not be used for a single entry")
	}

	picker.entryIndex = 1
	e, err = app.ResolveEntry([]string{"15.03.2024"}, "")
	if err != nil || e.AdditionalInfo != "noon" {
		t.Errorf("expected noon from sorted choices, got %+v %v", e, err)
	}

	picker.entryIndex = 2
	e, err = app.ResolveEntry(nil, "")
	if err != nil || e.AdditionalInfo != "single" {
		t.Errorf("expected single from all entries, got %+v %v", e, err)
	}
	if len(picker.offeredEntries) != 3 {
		t.Errorf("expected all entries offered, got %d", len(picker.offeredEntries))
	}

	if _, err := app.ResolveEntry([]string{"17.03.2024"}, ""); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := app.ResolveEntry([]string{"15.03.2024", "99:00"}, ""); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}

	picker.err = ErrNoSelection
	if _, err := app.ResolveEntry(nil, ""); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}
}

func TestApp_Edit(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo, Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "10:00", AdditionalInfo: "old"})

	err := app.Edit([]string{"15.03.2024", "10:00"}, EntryInput{Date: strPtr("16.03.2024"), AdditionalInfo: strPtr("new")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "Entry updated: 16.03.2024 (Samstag) 10:00\n" {
		t.Errorf("unexpected output %q", got)
	}

	e, err := app.repo.GetEntry("16.03.2024", "10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.AdditionalInfo != "new" || e.DayOfWeek != "Samstag" {
		t.Errorf("unexpected entry %+v", e)
	}

	out.Reset()
	if err := app.Edit([]string{"16.03.2024", "10:00"}, EntryInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "Nothing to change.\n" {
		t.Errorf("unexpected output %q", got)
	}

	if err := app.Edit([]string{"16.03.2024", "10:00"}, EntryInput{Time: strPtr("7")}); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
}

func TestApp_EditKeepsExplicitWeekday(t *testing.T) {
	app, _, _ := newTestApp(t)
	mustCreate(t, app.repo, Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "10:00"})

	e, err := app.UpdateEntry("15.03.2024", "10:00", EntryInput{Date: strPtr("16.03.2024"), DayOfWeek: strPtr("Urlaub")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Date != "16.03.2024" || e.DayOfWeek != "Urlaub" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestApp_Delete(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo,
		Entry{Date: "15.03.2024", Time: "10:00", AdditionalInfo: "one"},
		Entry{Date: "15.03.2024", Time: "10:00", AdditionalInfo: "two"},
	)

	if err := app.Delete([]string{"15.03.2024", "10:00"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "Entry deleted: 15.03.2024 10:00\n" {
		t.Errorf("unexpected output %q", got)
	}

	_, left, err := app.DayEntries("15.03.2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(left) != 1 || left[0].AdditionalInfo != "two" {
		t.Errorf("expected exactly one remaining entry, got %+v", left)
	}
}

func TestApp_Show(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo, Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "10:00", AdditionalInfo: "line one\nline two"})

	if err := app.Show([]string{"15.03.2024"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "15.03.2024\nFreitag, 10:00\n\nline one\nline two\n"
	if got := out.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApp_Info(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo, Entry{Date: "15.03.2024", Time: "10:00"})

	if err := app.Info(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Database:", app.repo.Path(), "SQLite version:", "Entries:        1", "[Entries]"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output %q", want, got)
		}
	}
}

func TestApp_ImportICSSkipsDuplicates(t *testing.T) {
	app, out, _ := newTestApp(t)
	mustCreate(t, app.repo,
		Entry{Date: "15.03.2024", DayOfWeek: "Freitag", Time: "10:00", AdditionalInfo: "Zahnarzt"},
		Entry{Date: "16.03.2024", DayOfWeek: "Samstag", Time: "11:30", AdditionalInfo: "Markt"},
	)

	var buf bytes.Buffer
	if err := app.Export(&buf, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := app.ImportICS(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Imported != 0 || res.Skipped != 2 {
		t.Errorf("expected everything skipped, got %+v", res)
	}

	app.PrintImportResult(res)
	if got := out.String(); got != "Imported 0 entries, skipped 2 already present.\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestApp_ImportEntriesDeduplicatesBatch(t *testing.T) {
	app, _, _ := newTestApp(t)

	res, err := app.importEntries([]Entry{
		{Date: "1.4.2024", Time: "9:00", AdditionalInfo: "x"},
		{Date: "01.04.2024", Time: "09:00", AdditionalInfo: "x"},
		{Date: "01.04.2024", Time: "09:00", AdditionalInfo: "y"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	e, err := app.repo.GetEntry("01.04.2024", "09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Date != "01.04.2024" || e.DayOfWeek != "Montag" {
		t.Errorf("expected normalized row with derived weekday, got %+v", e)
	}
}

func TestApp_ImportEntriesMatchesLegacyRows(t *testing.T) {
	app, _, _ := newTestApp(t)
	if _, err := app.repo.db.Exec(`INSERT INTO Entries (Date, DayOfWeek, time, AdditionalInfo) VALUES ('5.3.2024', 'Dienstag', '9:00', 'x')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := app.importEntries([]Entry{
		{Date: "05.03.2024", Time: "09:00", AdditionalInfo: "x"},
		{Date: "06.03.2024", DayOfWeek: "Mittwoch", Time: "09:00", AdditionalInfo: "x"},
		{Date: "06.03.2024", DayOfWeek: "Wednesday", Time: "09:00", AdditionalInfo: "x"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Imported != 1 || res.Skipped != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	entries, err := app.repo.GetAllEntries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected legacy row plus one import, got %+v", entries)
	}
}
