package main

import (
	"errors"
	"fmt"

	"github.com/nexidian/gocliselect"
)

// Picker lets the user choose a row when a command was not given one.
type Picker interface {
	PickEntry(prompt string, entries []Entry) (Entry, error)
	PickDay(prompt string, days []Day) (Day, error)
}

// menuPicker renders an arrow-key menu on the terminal.
type menuPicker struct{}

func (menuPicker) PickEntry(prompt string, entries []Entry) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrNoEntries
	}

	menu := gocliselect.NewMenu(prompt)
	for i, e := range entries {
		menu.AddItem(entryLabel(e), i)
	}

	choice, err := menu.Display()
	i, err := menuChoice(choice, err, len(entries))
	if err != nil {
		return Entry{}, err
	}
	return entries[i], nil
}

func (menuPicker) PickDay(prompt string, days []Day) (Day, error) {
	menu := gocliselect.NewMenu(prompt)
	for i, d := range days {
		menu.AddItem(dayLabel(d), i)
	}

	choice, err := menu.Display()
	i, err := menuChoice(choice, err, len(days))
	if err != nil {
		return Day{}, err
	}
	return days[i], nil
}

// menuChoice maps the result of Menu.Display to an index below n.
// Escape yields an empty string.
func menuChoice(choice any, err error, n int) (int, error) {
	if errors.Is(err, gocliselect.ErrNoMenuItems) {
		return 0, ErrNoEntries
	}
	if err != nil {
		return 0, fmt.Errorf("menu: %w", err)
	}
	if choice == nil || choice == "" {
		return 0, ErrNoSelection
	}
	i, ok := choice.(int)
	if !ok || i < 0 || i >= n {
		return 0, fmt.Errorf("unexpected menu choice %v", choice)
	}
	return i, nil
}

func entryLabel(e Entry) string {
	return fmt.Sprintf("%s  %-10s  %s  %s", e.Date, e.DayOfWeek, e.Time, Summary(e.AdditionalInfo, 40))
}

func dayLabel(d Day) string {
	label := fmt.Sprintf("%02d. %s", d.Day, d.Weekday)
	if d.Entries > 0 {
		label += fmt.Sprintf(" (%d)", d.Entries)
	}
	return label
}
