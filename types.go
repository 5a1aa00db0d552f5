package main

type Entry struct {
	RowID          int64  `json:"-"`
	Date           string `json:"date"`
	DayOfWeek      string `json:"day_of_week"`
	Time           string `json:"time"`
	AdditionalInfo string `json:"additional_info"`
}

// EntryInput carries optional fields for add and edit. Nil means "not given".
type EntryInput struct {
	Date           *string `json:"date,omitempty"`
	DayOfWeek      *string `json:"day_of_week,omitempty"`
	Time           *string `json:"time,omitempty"`
	AdditionalInfo *string `json:"additional_info,omitempty"`
	Repeat         string  `json:"repeat,omitempty"`
}

type Day struct {
	Day     int    `json:"day"`
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Entries int    `json:"entries"`
}

type MonthView struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Label string `json:"label"`
	Days  []Day  `json:"days"`
}

type DBInfo struct {
	Path          string   `json:"path"`
	EntryCount    int      `json:"entry_count"`
	Tables        []string `json:"tables"`
	SQLiteVersion string   `json:"sqlite_version"`
	FileSize      int64    `json:"file_size"`
	TotalRecords  int      `json:"total_records"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
