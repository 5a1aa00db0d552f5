package main

import "errors"

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrInvalidDate   = errors.New("invalid date, use dd.mm.yyyy")
	ErrInvalidTime   = errors.New("invalid time, use hh:mm")
	ErrInvalidRepeat = errors.New("invalid repeat rule")
	ErrNoEntries     = errors.New("no entries")
	ErrNoSelection   = errors.New("nothing selected")
)
