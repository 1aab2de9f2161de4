// Package schedule is the persistent keyed insert/query service the agent
// caches learned train times in. The core treats entries as opaque
// records; all persistence lives here.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DayType classifies a schedule entry.
type DayType string

const (
	Weekday  DayType = "Weekday"
	Weekend  DayType = "Weekend"
	Saturday DayType = "Saturday"
	Sunday   DayType = "Sunday"
)

// ParseDayType validates a day-type string from a tool argument.
func ParseDayType(s string) (DayType, error) {
	switch DayType(strings.TrimSpace(s)) {
	case Weekday:
		return Weekday, nil
	case Weekend:
		return Weekend, nil
	case Saturday:
		return Saturday, nil
	case Sunday:
		return Sunday, nil
	default:
		return "", fmt.Errorf("invalid day_type %q", s)
	}
}

// Entry is one stored schedule record.
type Entry struct {
	Origin        string
	Destination   string
	DepartureTime string
	DayType       DayType
	TrainNumber   string
}

// Store persists schedule entries in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the store at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open schedule store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schedules (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			origin         TEXT NOT NULL,
			destination    TEXT NOT NULL,
			departure_time TEXT NOT NULL,
			day_type       TEXT NOT NULL,
			train_number   TEXT NOT NULL DEFAULT ''
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schedules table: %w", err)
	}
	return &Store{db: db}, nil
}

// Query returns the stored departure times for a route, ordered ascending.
// Origin and destination match case-insensitively; an empty result is not
// an error.
func (s *Store) Query(ctx context.Context, origin, destination string, day DayType) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT departure_time FROM schedules
		WHERE LOWER(origin) = LOWER(?)
		  AND LOWER(destination) = LOWER(?)
		  AND day_type = ?
		ORDER BY departure_time ASC`,
		origin, destination, string(day))
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// Insert appends one entry. The store does not deduplicate; retries from
// the caller are safe in the sense that they only add rows.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (origin, destination, departure_time, day_type, train_number)
		VALUES (?, ?, ?, ?, ?)`,
		e.Origin, e.Destination, e.DepartureTime, string(e.DayType), e.TrainNumber); err != nil {
		return fmt.Errorf("insert schedule entry: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
