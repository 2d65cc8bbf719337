// Package period resolves month-index selections into calendar months and
// loads the working expense collections from the upstream backend.
package period

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

// MonthFetcher is the read side of the upstream backend.
type MonthFetcher interface {
	// ListMonthly returns all expense records for one calendar month.
	// Month is 1-indexed.
	ListMonthly(ctx context.Context, year, month int) ([]core.Expense, error)
}

// MonthResult is the typed outcome of one per-month fetch. A failed month
// contributes an empty collection; Err records why, so callers can tell
// "genuinely zero expenses" from "fetch failed" without changing behavior.
type MonthResult struct {
	Index    int
	Year     int
	Month    int
	Expenses []core.Expense
	Err      error
}

// Loader produces the all-time window and the selected period.
type Loader struct {
	fetcher MonthFetcher
	logger  *log.Logger
}

func NewLoader(fetcher MonthFetcher, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentPeriod)
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// ResolveCalendarMonth returns the calendar month that is index months
// before the month containing ref. Index 0 is the reference month. Year
// boundaries roll over (January minus one month is December of the
// previous year).
func ResolveCalendarMonth(index int, ref time.Time) (year, month int) {
	first := time.Date(ref.Year(), ref.Month()-time.Month(index), 1, 0, 0, 0, 0, time.UTC)
	return first.Year(), int(first.Month())
}

// LoadWindow fetches indices 0..11 concurrently and merges the results
// into a deduplicated set keyed by record id. A failed month contributes
// an empty collection and never aborts the window. Merging walks results
// in index order, so when two months return the same id the one from the
// higher (older) index wins — deterministic regardless of which fetch
// completed first.
func (l *Loader) LoadWindow(ctx context.Context, ref time.Time) ([]core.Expense, []MonthResult) {
	results := make([]MonthResult, core.WindowMonths)

	var g errgroup.Group
	for i := 0; i < core.WindowMonths; i++ {
		i := i
		g.Go(func() error {
			year, month := ResolveCalendarMonth(i, ref)
			records, err := l.fetcher.ListMonthly(ctx, year, month)
			if err != nil {
				l.logger.WarnContext(ctx, "monthly fetch failed, treating month as empty",
					log.FieldYear, year, log.FieldMonth, month, log.FieldError, err)
				records = nil
			}
			results[i] = MonthResult{Index: i, Year: year, Month: month, Expenses: records, Err: err}
			return nil
		})
	}
	// Fetch errors are captured per month, never returned.
	_ = g.Wait()

	return mergeByID(results), results
}

// LoadPeriod returns the record collection for the selected month index.
// The all-time index yields a snapshot copy of the window. A failed fetch
// yields an empty period plus the error as a non-fatal status.
func (l *Loader) LoadPeriod(ctx context.Context, index int, ref time.Time, window []core.Expense) ([]core.Expense, error) {
	if index == core.AllTimeIndex {
		return append([]core.Expense(nil), window...), nil
	}

	year, month := ResolveCalendarMonth(index, ref)
	records, err := l.fetcher.ListMonthly(ctx, year, month)
	if err != nil {
		l.logger.WarnContext(ctx, "period fetch failed, showing empty period",
			log.FieldMonthIndex, index, log.FieldYear, year, log.FieldMonth, month, log.FieldError, err)
		return nil, err
	}
	return records, nil
}

// mergeByID collapses duplicate ids across month windows. Keys keep the
// order of their first occurrence; the value is the last one processed.
func mergeByID(results []MonthResult) []core.Expense {
	idx := make(map[string]int)
	var merged []core.Expense
	for _, r := range results {
		for _, e := range r.Expenses {
			if i, ok := idx[e.ID]; ok {
				merged[i] = e
				continue
			}
			idx[e.ID] = len(merged)
			merged = append(merged, e)
		}
	}
	return merged
}
