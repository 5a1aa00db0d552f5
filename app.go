package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type App struct {
	repo   *Repo
	cfg    *Config
	out    io.Writer
	picker Picker
	log    zerolog.Logger
	now    func() time.Time
}

func NewApp(repo *Repo, cfg *Config, out io.Writer, picker Picker, logger zerolog.Logger) *App {
	return &App{
		repo:   repo,
		cfg:    cfg,
		out:    out,
		picker: picker,
		log:    logger.With().Str("component", "app").Logger(),
		now:    time.Now,
	}
}

func (a *App) today() string {
	return FormatDate(a.now())
}

// +---------------------+
// |                     |
// |    Calendar View    |
// |                     |
// +---------------------+

func (a *App) MonthView(year int, month time.Month) (MonthView, error) {
	if year < minYear || year > maxYear || month < time.January || month > time.December {
		return MonthView{}, fmt.Errorf("%02d.%d: %w", int(month), year, ErrInvalidDate)
	}

	counts, err := a.repo.CountEntriesByDate()
	if err != nil {
		return MonthView{}, fmt.Errorf("error counting entries: %w", err)
	}
	return BuildMonth(year, month, a.cfg.Language, counts), nil
}

// Month prints the day list of a month. selected is marked when it falls into
// the month; with pick the user chooses a day whose entries are shown next.
func (a *App) Month(year int, month time.Month, selected string, pick bool) error {
	view, err := a.MonthView(year, month)
	if err != nil {
		return err
	}

	if pick {
		day, err := a.picker.PickDay(view.Label, view.Days)
		if err != nil {
			return err
		}
		return a.Day(day.Date)
	}

	fmt.Fprintln(a.out, view.Label)
	fmt.Fprintln(a.out)

	headers := []string{"", "Day", "Entries"}
	var rows [][]string
	total := 0
	for _, d := range view.Days {
		marker := ""
		if d.Date == selected {
			marker = ">"
		}
		count := ""
		if d.Entries > 0 {
			count = strconv.Itoa(d.Entries)
		}
		total += d.Entries
		rows = append(rows, []string{marker, fmt.Sprintf("%02d. %s", d.Day, d.Weekday), count})
	}

	PrintTable(a.out, headers, rows, []string{"", "Total:", strconv.Itoa(total)})
	return nil
}

// DayEntries returns the entries of one date sorted by time.
func (a *App) DayEntries(date string) (string, []Entry, error) {
	normalized, err := NormalizeDate(date)
	if err != nil {
		return "", nil, err
	}

	entries, err := a.repo.GetEntriesByDate(normalized)
	if err != nil {
		return "", nil, fmt.Errorf("error loading entries: %w", err)
	}
	SortEntries(entries)
	return normalized, entries, nil
}

func (a *App) Day(date string) error {
	normalized, entries, err := a.DayEntries(date)
	if err != nil {
		return err
	}

	dow, _ := WeekdayFor(normalized, a.cfg.Language)
	fmt.Fprintf(a.out, "%s, %s\n\n", normalized, dow)

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No entries.")
		return nil
	}

	headers := []string{"Time", "Additional information"}
	var rows [][]string
	for _, e := range entries {
		rows = append(rows, []string{e.Time, Summary(e.AdditionalInfo, 60)})
	}
	PrintTable(a.out, headers, rows, nil)
	return nil
}

// +---------------------+
// |                     |
// |     Entry List      |
// |                     |
// +---------------------+

// Entries returns all entries sorted by date and time, only those from today
// on unless all is set.
func (a *App) Entries(all bool) ([]Entry, error) {
	entries, err := a.repo.GetAllEntries()
	if err != nil {
		return nil, fmt.Errorf("error loading entries: %w", err)
	}

	if !all {
		entries = FilterUpcoming(entries, a.now())
	}
	SortEntries(entries)
	return entries, nil
}

func (a *App) List(all bool) error {
	entries, err := a.Entries(all)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		if all {
			fmt.Fprintln(a.out, "No entries.")
		} else {
			fmt.Fprintln(a.out, "No upcoming entries, use --all to include past ones.")
		}
		return nil
	}

	headers := []string{"Date", "Weekday", "Time", "Additional information"}
	var rows [][]string
	var lastDate string
	for _, e := range entries {
		date, dow := e.Date, e.DayOfWeek
		if date == lastDate {
			date, dow = "", ""
		} else {
			lastDate = date
		}
		rows = append(rows, []string{date, dow, e.Time, Summary(e.AdditionalInfo, 50)})
	}

	footers := []string{"", "", "Total:", strconv.Itoa(len(entries))}
	PrintTable(a.out, headers, rows, footers)
	return nil
}

// +---------------------+
// |                     |
// |   Add/Edit/Delete   |
// |                     |
// +---------------------+

// NewEntry builds the row an add would store: today and 00:00 unless given,
// weekday derived from the date unless given.
func (a *App) NewEntry(in EntryInput) (Entry, error) {
	date := a.today()
	if in.Date != nil && *in.Date != "" {
		date = *in.Date
	}
	date, err := NormalizeDate(date)
	if err != nil {
		return Entry{}, err
	}

	clock := defaultClock
	if in.Time != nil && *in.Time != "" {
		clock = *in.Time
	}
	clock, err = NormalizeClock(clock)
	if err != nil {
		return Entry{}, err
	}

	dow, _ := WeekdayFor(date, a.cfg.Language)
	if in.DayOfWeek != nil && *in.DayOfWeek != "" {
		dow = *in.DayOfWeek
	}

	e := Entry{Date: date, DayOfWeek: dow, Time: clock}
	if in.AdditionalInfo != nil {
		e.AdditionalInfo = *in.AdditionalInfo
	}
	return e, nil
}

// AddEntries stores one entry, or one per occurrence when in.Repeat is set.
func (a *App) AddEntries(in EntryInput) ([]Entry, error) {
	e, err := a.NewEntry(in)
	if err != nil {
		return nil, err
	}

	if in.Repeat == "" {
		if err := a.repo.CreateEntry(e); err != nil {
			return nil, err
		}
		a.log.Debug().Str("date", e.Date).Str("time", e.Time).Msg("entry added")
		return []Entry{e}, nil
	}

	entries, err := ExpandRepeat(e, in.Repeat, a.cfg.Language)
	if err != nil {
		return nil, err
	}
	if err := a.repo.CreateEntries(entries); err != nil {
		return nil, err
	}
	a.log.Debug().Int("count", len(entries)).Str("rule", in.Repeat).Msg("recurring entries added")
	return entries, nil
}

func (a *App) Add(in EntryInput) error {
	entries, err := a.AddEntries(in)
	if err != nil {
		return err
	}

	if len(entries) == 1 {
		e := entries[0]
		fmt.Fprintf(a.out, "Entry added: %s (%s) %s\n", e.Date, e.DayOfWeek, e.Time)
		return nil
	}

	first, last := entries[0], entries[len(entries)-1]
	fmt.Fprintf(a.out, "%d entries added: %s %s to %s %s\n", len(entries), first.Date, first.Time, last.Date, last.Time)
	return nil
}

// applyEdit merges in into target. A changed date recomputes the weekday
// unless one was given explicitly.
func (a *App) applyEdit(target Entry, in EntryInput) (Entry, error) {
	updated := target

	if in.Date != nil && *in.Date != "" {
		date, err := NormalizeDate(*in.Date)
		if err != nil {
			return Entry{}, err
		}
		if date != target.Date {
			updated.Date = date
			updated.DayOfWeek, _ = WeekdayFor(date, a.cfg.Language)
		}
	}
	if in.DayOfWeek != nil {
		updated.DayOfWeek = *in.DayOfWeek
	}
	if in.Time != nil && *in.Time != "" {
		clock, err := NormalizeClock(*in.Time)
		if err != nil {
			return Entry{}, err
		}
		updated.Time = clock
	}
	if in.AdditionalInfo != nil {
		updated.AdditionalInfo = *in.AdditionalInfo
	}
	return updated, nil
}

// UpdateEntry edits the first entry stored under date and clock.
func (a *App) UpdateEntry(date, clock string, in EntryInput) (Entry, error) {
	target, err := a.repo.GetEntry(date, clock)
	if err != nil {
		return Entry{}, err
	}

	updated, err := a.applyEdit(target, in)
	if err != nil {
		return Entry{}, err
	}
	return a.repo.UpdateEntry(date, clock, updated)
}

// DeleteEntry removes the first entry stored under date and clock.
func (a *App) DeleteEntry(date, clock string) (Entry, error) {
	return a.repo.DeleteEntry(date, clock)
}

// ResolveEntry finds the entry a command refers to: [DATE TIME] names it,
// [DATE] narrows the choice to one day, no arguments offers every entry.
func (a *App) ResolveEntry(args []string, prompt string) (Entry, error) {
	switch len(args) {
	case 2:
		date, err := NormalizeDate(args[0])
		if err != nil {
			return Entry{}, err
		}
		clock, err := NormalizeClock(args[1])
		if err != nil {
			return Entry{}, err
		}
		return a.repo.GetEntry(date, clock)
	case 1:
		_, entries, err := a.DayEntries(args[0])
		if err != nil {
			return Entry{}, err
		}
		if len(entries) == 1 {
			return entries[0], nil
		}
		if len(entries) == 0 {
			return Entry{}, fmt.Errorf("%s: %w", args[0], ErrEntryNotFound)
		}
		return a.picker.PickEntry(prompt, entries)
	default:
		entries, err := a.Entries(true)
		if err != nil {
			return Entry{}, err
		}
		return a.picker.PickEntry(prompt, entries)
	}
}

func (a *App) Edit(args []string, in EntryInput) error {
	target, err := a.ResolveEntry(args, "Select entry to edit")
	if err != nil {
		return err
	}

	updated, err := a.applyEdit(target, in)
	if err != nil {
		return err
	}
	if updated == target {
		fmt.Fprintln(a.out, "Nothing to change.")
		return nil
	}

	if err := a.repo.UpdateEntryByRowID(target.RowID, updated); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Entry updated: %s (%s) %s\n", updated.Date, updated.DayOfWeek, updated.Time)
	return nil
}

func (a *App) Delete(args []string) error {
	target, err := a.ResolveEntry(args, "Select entry to delete")
	if err != nil {
		return err
	}

	if err := a.repo.DeleteEntryByRowID(target); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Entry deleted: %s %s\n", target.Date, target.Time)
	return nil
}

// Show prints one entry in full.
func (a *App) Show(args []string) error {
	e, err := a.ResolveEntry(args, "Select entry")
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n%s, %s\n\n%s\n", e.Date, e.DayOfWeek, e.Time, e.AdditionalInfo)
	return nil
}

// +---------------------+
// |                     |
// |    Database Info    |
// |                     |
// +---------------------+

func (a *App) Info() error {
	info, err := a.repo.Info()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Database:       %s\n", info.Path)
	fmt.Fprintf(a.out, "SQLite version: %s\n", info.SQLiteVersion)
	fmt.Fprintf(a.out, "File size:      %s\n", FormatSize(info.FileSize))
	fmt.Fprintf(a.out, "Tables:         %d (%v)\n", len(info.Tables), info.Tables)
	fmt.Fprintf(a.out, "Entries:        %d\n", info.EntryCount)
	fmt.Fprintf(a.out, "Total records:  %d\n", info.TotalRecords)
	return nil
}

// +---------------------+
// |                     |
// |   Import/Export     |
// |                     |
// +---------------------+

func (a *App) Export(w io.Writer, all bool) error {
	entries, err := a.Entries(all)
	if err != nil {
		return err
	}

	n, err := WriteICS(w, entries, a.cfg.Language, a.now(), a.log)
	if err != nil {
		return err
	}
	a.log.Info().Int("events", n).Msg("calendar exported")
	return nil
}

func (a *App) ImportICS(r io.Reader) (ImportResult, error) {
	entries, err := ReadICS(r, a.cfg.Language, a.log)
	if err != nil {
		return ImportResult{}, err
	}
	return a.importEntries(entries)
}

// Import copies every entry of a remote kalender server into the local
// database.
func (a *App) Import(url string) (ImportResult, error) {
	client := NewAPIClient(url)

	remote, err := client.GetEntries(true)
	if err != nil {
		return ImportResult{}, err
	}
	if len(remote) == 0 {
		return ImportResult{}, ErrNoEntries
	}
	return a.importEntries(remote)
}

// Push sends local entries the remote server does not hold yet.
func (a *App) Push(url string, all bool) (ImportResult, error) {
	client := NewAPIClient(url)

	remote, err := client.GetEntries(true)
	if err != nil {
		return ImportResult{}, err
	}
	have := make(map[Entry]bool, len(remote))
	for _, e := range remote {
		have[Entry{Date: e.Date, Time: e.Time, AdditionalInfo: e.AdditionalInfo}] = true
	}

	local, err := a.Entries(all)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, e := range local {
		if have[Entry{Date: e.Date, Time: e.Time, AdditionalInfo: e.AdditionalInfo}] {
			res.Skipped++
			continue
		}
		in := EntryInput{Date: &e.Date, DayOfWeek: &e.DayOfWeek, Time: &e.Time, AdditionalInfo: &e.AdditionalInfo}
		if _, err := client.CreateEntry(in); err != nil {
			return res, fmt.Errorf("error pushing %s %s: %w", e.Date, e.Time, err)
		}
		res.Imported++
	}

	a.log.Info().Int("pushed", res.Imported).Int("skipped", res.Skipped).Msg("push finished")
	return res, nil
}

// importEntries stores entries that do not exist yet, all in one transaction.
func (a *App) importEntries(entries []Entry) (ImportResult, error) {
	var (
		res   ImportResult
		fresh []Entry
		seen  = make(map[[3]string]bool)
	)

	for _, e := range entries {
		e.RowID = 0
		if date, err := NormalizeDate(e.Date); err == nil {
			e.Date = date
		}
		if clock, err := NormalizeClock(e.Time); err == nil {
			e.Time = clock
		}
		if e.DayOfWeek == "" {
			e.DayOfWeek, _ = WeekdayFor(e.Date, a.cfg.Language)
		}

		exists, err := a.repo.EntryExists(e)
		if err != nil {
			return ImportResult{}, err
		}
		key := [3]string{e.Date, e.Time, e.AdditionalInfo}
		if exists || seen[key] {
			res.Skipped++
			continue
		}
		seen[key] = true
		fresh = append(fresh, e)
	}

	if len(fresh) > 0 {
		if err := a.repo.CreateEntries(fresh); err != nil {
			return ImportResult{}, err
		}
	}
	res.Imported = len(fresh)

	a.log.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("import finished")
	return res, nil
}

func (a *App) PrintImportResult(res ImportResult) {
	fmt.Fprintf(a.out, "Imported %d entries, skipped %d already present.\n", res.Imported, res.Skipped)
}
