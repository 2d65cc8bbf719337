package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// AllTimeIndex is the virtual month index selecting the union of the
	// last twelve calendar months.
	AllTimeIndex = -1

	// OldestMonthIndex is the largest supported lookback index. Index 0 is
	// the current calendar month, 11 the oldest month still fetched.
	OldestMonthIndex = 11

	// WindowMonths is the number of calendar months covered by the rolling
	// all-time window.
	WindowMonths = 12
)

type (
	// Date carries a calendar date. Time-of-day is normalized to midnight
	// UTC when writing to the upstream API.
	Date struct {
		time.Time
	}

	// Money is a currency amount in paise (hundredths of a rupee).
	// Aggregation is done in integer paise to avoid float drift.
	Money struct {
		Paise int64
	}

	// Expense is a single expense record as served by the upstream API.
	// ID is opaque, stable across fetches and used as the dedup key.
	// Category is a raw label and need not exist in the category list.
	Expense struct {
		ID       string
		Date     Date
		Note     string
		Amount   Money
		Category string
	}
)

// Mode controls whether remaining-balance figures are computed. In
// track-only mode they are suppressed and no over-budget warning fires.
type Mode string

const (
	ModeBudget    Mode = "budget"
	ModeTrackOnly Mode = "track"
)

// DefaultCategories is the built-in category list used when no persisted
// list exists or the persisted value is malformed.
var DefaultCategories = []string{"Food", "Transport", "Groceries", "Entertainment", "Bills", "Other"}

// DefaultInitialBalance is the monthly budget assumed before the user sets
// one.
var DefaultInitialBalance = Money{Paise: 10000 * 100}

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCategory     = errors.New("empty category")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrEmptyCategoryName = errors.New("empty category name")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month, 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Day returns the day of the month, 1-indexed.
func (d Date) Day() int {
	return d.Time.Day()
}

// InMonth reports whether the date falls inside the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Paise <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks an expense before it is submitted upstream. Validation
// failures block submission entirely; they are never sent to the backend.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
