package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	// migration queries
	createEntriesTableSQL = `
  CREATE TABLE IF NOT EXISTS Entries (
  Date TEXT,
  DayOfWeek TEXT,
  time TEXT,
  AdditionalInfo TEXT
  )`

	// entry queries
	entryColumns             = `rowid, Date, DayOfWeek, time, AdditionalInfo`
	createEntrySQL           = `INSERT INTO Entries (Date, DayOfWeek, time, AdditionalInfo) VALUES (?, ?, ?, ?)`
	getAllEntriesSQL         = `SELECT ` + entryColumns + ` FROM Entries ORDER BY rowid`
	countEntriesByDateSQL    = `SELECT Date, COUNT(*) FROM Entries GROUP BY Date`
	updateEntryByRowIDSQL    = `UPDATE Entries SET Date = ?, DayOfWeek = ?, time = ?, AdditionalInfo = ? WHERE rowid = ?`
	deleteEntryByRowIDSQL    = `DELETE FROM Entries WHERE rowid = ?`
	countAllEntriesSQL       = `SELECT COUNT(*) FROM Entries`
	listTablesSQL            = `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`
	sqliteVersionSQL         = `SELECT sqlite_version()`
	entriesByDateSQLFmt      = `SELECT ` + entryColumns + ` FROM Entries WHERE Date IN (%s) ORDER BY rowid`
	entryByDateAndTimeSQLFmt = `SELECT ` + entryColumns + ` FROM Entries WHERE Date IN (%s) AND time IN (%s) ORDER BY rowid LIMIT 1`
	entryExistsSQLFmt        = `SELECT EXISTS(SELECT 1 FROM Entries WHERE Date IN (%s) AND time IN (%s) AND COALESCE(AdditionalInfo, '') = ?)`
)

type Repo struct {
	db   *sql.DB
	path string
	log  zerolog.Logger
}

func NewRepo(dbPath string, logger zerolog.Logger) (*Repo, error) {
	// ensure directory exists
	err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// open database
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	// verify connection with database
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &Repo{
		db:   db,
		path: dbPath,
		log:  logger.With().Str("component", "repo").Logger(),
	}

	// run migrations
	if err := repo.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo.log.Debug().Str("path", dbPath).Msg("database opened")
	return repo, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Path() string {
	return r.path
}

// runs migrations on every open, the statements are idempotent
func (r *Repo) runMigrations() error {
	tables := []string{
		createEntriesTableSQL,
	}

	for _, tableSQL := range tables {
		if _, err := r.db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (Entry, error) {
	var (
		e    Entry
		dow  sql.NullString
		tm   sql.NullString
		info sql.NullString
		date sql.NullString
	)
	if err := s.Scan(&e.RowID, &date, &dow, &tm, &info); err != nil {
		return Entry{}, err
	}
	e.Date = date.String
	e.DayOfWeek = dow.String
	e.Time = tm.String
	e.AdditionalInfo = info.String
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Older databases may hold unpadded dates and times (1.2.2024, 9:05), so
// lookups match every spelling of the normalized key.
func dateVariants(date string) []string {
	t, err := ParseDate(date)
	if err != nil {
		return []string{date}
	}
	d, m, y := t.Day(), int(t.Month()), t.Year()
	return uniqueStrings(
		fmt.Sprintf("%02d.%02d.%d", d, m, y),
		fmt.Sprintf("%d.%d.%d", d, m, y),
		fmt.Sprintf("%d.%02d.%d", d, m, y),
		fmt.Sprintf("%02d.%d.%d", d, m, y),
		date,
	)
}

func timeVariants(clock string) []string {
	h, m, err := ParseClock(clock)
	if err != nil {
		return []string{clock}
	}
	return uniqueStrings(
		fmt.Sprintf("%02d:%02d", h, m),
		fmt.Sprintf("%d:%02d", h, m),
		clock,
	)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(groups ...[]string) []any {
	var args []any
	for _, g := range groups {
		for _, s := range g {
			args = append(args, s)
		}
	}
	return args
}

// +---------------------+
// |                     |
// |    Entry Queries    |
// |                     |
// +---------------------+

// inserts a single entry
func (r *Repo) CreateEntry(e Entry) error {
	_, err := r.db.Exec(createEntrySQL, e.Date, e.DayOfWeek, e.Time, e.AdditionalInfo)
	if err != nil {
		return fmt.Errorf("error inserting entry: %w", err)
	}
	return nil
}

// inserts all entries or none
func (r *Repo) CreateEntries(entries []Entry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(createEntrySQL)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Date, e.DayOfWeek, e.Time, e.AdditionalInfo); err != nil {
			return fmt.Errorf("error inserting entry %s %s: %w", e.Date, e.Time, err)
		}
	}

	return tx.Commit()
}

// get all entries in insertion order
func (r *Repo) GetAllEntries() ([]Entry, error) {
	rows, err := r.db.Query(getAllEntriesSQL)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// get entries stored for one date
func (r *Repo) GetEntriesByDate(date string) ([]Entry, error) {
	dates := dateVariants(date)
	query := fmt.Sprintf(entriesByDateSQLFmt, placeholders(len(dates)))

	rows, err := r.db.Query(query, toArgs(dates)...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// get the first entry matching date and time
func (r *Repo) GetEntry(date, clock string) (Entry, error) {
	return r.getEntry(r.db, date, clock)
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (r *Repo) getEntry(q querier, date, clock string) (Entry, error) {
	dates, times := dateVariants(date), timeVariants(clock)
	query := fmt.Sprintf(entryByDateAndTimeSQLFmt, placeholders(len(dates)), placeholders(len(times)))

	e, err := scanEntry(q.QueryRow(query, toArgs(dates, times)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, fmt.Errorf("%s %s: %w", date, clock, ErrEntryNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

// number of entries per normalized date
func (r *Repo) CountEntriesByDate() (map[string]int, error) {
	rows, err := r.db.Query(countEntriesByDateSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			date  sql.NullString
			count int
		)
		if err := rows.Scan(&date, &count); err != nil {
			return nil, err
		}

		key, err := NormalizeDate(date.String)
		if err != nil {
			r.log.Warn().Str("date", date.String).Msg("skipping entry with unparsable date")
			continue
		}
		counts[key] += count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// checks if an entry with the same date, time and text exists
func (r *Repo) EntryExists(e Entry) (bool, error) {
	dates, times := dateVariants(e.Date), timeVariants(e.Time)
	query := fmt.Sprintf(entryExistsSQLFmt, placeholders(len(dates)), placeholders(len(times)))
	args := append(toArgs(dates, times), e.AdditionalInfo)

	var exists bool
	err := r.db.QueryRow(query, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking if entry exists: %w", err)
	}
	return exists, nil
}

// updates exactly one row matching date and time
func (r *Repo) UpdateEntry(date, clock string, e Entry) (Entry, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback()

	target, err := r.getEntry(tx, date, clock)
	if err != nil {
		return Entry{}, err
	}

	if _, err := tx.Exec(updateEntryByRowIDSQL, e.Date, e.DayOfWeek, e.Time, e.AdditionalInfo, target.RowID); err != nil {
		return Entry{}, fmt.Errorf("error while updating entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}

	e.RowID = target.RowID
	return e, nil
}

func (r *Repo) UpdateEntryByRowID(rowID int64, e Entry) error {
	res, err := r.db.Exec(updateEntryByRowIDSQL, e.Date, e.DayOfWeek, e.Time, e.AdditionalInfo, rowID)
	if err != nil {
		return fmt.Errorf("error while updating entry: %w", err)
	}
	return expectOneRow(res, e.Date, e.Time)
}

// deletes exactly one row matching date and time
func (r *Repo) DeleteEntry(date, clock string) (Entry, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback()

	target, err := r.getEntry(tx, date, clock)
	if err != nil {
		return Entry{}, err
	}

	if _, err := tx.Exec(deleteEntryByRowIDSQL, target.RowID); err != nil {
		return Entry{}, fmt.Errorf("error while deleting entry: %w", err)
	}

	return target, tx.Commit()
}

func (r *Repo) DeleteEntryByRowID(e Entry) error {
	res, err := r.db.Exec(deleteEntryByRowIDSQL, e.RowID)
	if err != nil {
		return fmt.Errorf("error while deleting entry: %w", err)
	}
	return expectOneRow(res, e.Date, e.Time)
}

func expectOneRow(res sql.Result, date, clock string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", date, clock, ErrEntryNotFound)
	}
	return nil
}

// +---------------------+
// |                     |
// |   Database Info     |
// |                     |
// +---------------------+
func (r *Repo) Info() (DBInfo, error) {
	info := DBInfo{Path: r.path}

	if err := r.db.QueryRow(countAllEntriesSQL).Scan(&info.EntryCount); err != nil {
		return DBInfo{}, fmt.Errorf("error counting entries: %w", err)
	}

	if err := r.db.QueryRow(sqliteVersionSQL).Scan(&info.SQLiteVersion); err != nil {
		return DBInfo{}, fmt.Errorf("error reading sqlite version: %w", err)
	}

	rows, err := r.db.Query(listTablesSQL)
	if err != nil {
		return DBInfo{}, fmt.Errorf("error listing tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return DBInfo{}, err
		}
		info.Tables = append(info.Tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DBInfo{}, err
	}

	for _, table := range info.Tables {
		var n int
		query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, strings.ReplaceAll(table, `"`, `""`))
		if err := r.db.QueryRow(query).Scan(&n); err != nil {
			return DBInfo{}, fmt.Errorf("error counting table %s: %w", table, err)
		}
		info.TotalRecords += n
	}

	if st, err := os.Stat(r.path); err == nil {
		info.FileSize = st.Size()
	}

	return info, nil
}
