package core

import (
	"sort"
	"time"
)

// TopCategoryNone is the placeholder reported when a collection has no
// records to rank.
const TopCategoryNone = "-"

// flatTolerancePaise is the spend delta (in paise) still reported as "about
// the same" by the month-over-month insight.
const flatTolerancePaise = 1

type (
	// CategoryAmount is an amount grouped under a category label.
	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// MonthTotal is the spend total of one calendar month.
	MonthTotal struct {
		Year  int
		Month int // 1-12
		Total Money
	}

	// InsightKind classifies the month-over-month comparison.
	InsightKind string

	// Insight is the outcome of comparing the selected period against the
	// preceding calendar month. Pct is only meaningful for Increased and
	// Decreased.
	Insight struct {
		Kind InsightKind
		Pct  float64
	}
)

const (
	// InsightNoHistory: the previous period falls outside the 12-month
	// lookback, so there is nothing to compare against.
	InsightNoHistory InsightKind = "no-history"
	// InsightFirstPeriod: no previous spend but current spend exists.
	InsightFirstPeriod InsightKind = "first-period"
	InsightIncreased   InsightKind = "increased"
	InsightDecreased   InsightKind = "decreased"
	InsightFlat        InsightKind = "flat"
)

// PeriodTotal sums the amounts of a record collection.
func PeriodTotal(records []Expense) Money {
	var total int64
	for _, e := range records {
		total += e.Amount.Paise
	}
	return Money{Paise: total}
}

// RemainingBudget returns the budget remainder clamped at zero, plus the
// separate over-budget signal (raw subtraction negative). The displayed
// remainder is never negative even when spend exceeds the budget.
func RemainingBudget(initialBalance, periodTotal Money) (remaining Money, overBudget bool) {
	raw := initialBalance.Paise - periodTotal.Paise
	if raw < 0 {
		return Money{}, true
	}
	return Money{Paise: raw}, false
}

// CategoryBreakdown groups amounts by raw category label, preserving the
// order of each label's first occurrence in the input. Aggregation groups
// by the string itself, so labels deleted from the category list still
// show up here.
func CategoryBreakdown(records []Expense) []CategoryAmount {
	idx := make(map[string]int, len(records))
	out := make([]CategoryAmount, 0, len(records))
	for _, e := range records {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount.Paise += e.Amount.Paise
	}
	return out
}

// TopCategory returns the label with the largest summed amount. Ties go to
// the label whose first record appears earliest in the input. Returns
// TopCategoryNone for an empty collection.
func TopCategory(records []Expense) string {
	groups := CategoryBreakdown(records)
	if len(groups) == 0 {
		return TopCategoryNone
	}
	best := groups[0]
	for _, g := range groups[1:] {
		if g.Amount.Paise > best.Amount.Paise {
			best = g
		}
	}
	return best.Name
}

// TopCategoriesSince ranks categories by total spend over records dated on
// or after cutoff, descending, keeping at most limit entries. The sort is
// stable so equal totals keep their grouping insertion order.
func TopCategoriesSince(records []Expense, cutoff time.Time, limit int) []CategoryAmount {
	var recent []Expense
	for _, e := range records {
		if e.Date.Before(cutoff) {
			continue
		}
		recent = append(recent, e)
	}
	groups := CategoryBreakdown(recent)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Amount.Paise > groups[j].Amount.Paise
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// DailyBreakdown buckets records by day of month within the given calendar
// month, ignoring records outside it. The returned slice has one entry per
// day of that month (index 0 = day 1), respecting 28-31 day months and
// leap years.
func DailyBreakdown(records []Expense, year, month int) []Money {
	days := DaysInMonth(year, month)
	out := make([]Money, days)
	for _, e := range records {
		if !e.Date.InMonth(year, month) {
			continue
		}
		out[e.Date.Day()-1].Paise += e.Amount.Paise
	}
	return out
}

// DaysInMonth returns the number of days in the given calendar month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TotalForMonth sums the records of one calendar month out of a larger
// collection, typically the all-time window.
func TotalForMonth(records []Expense, year, month int) Money {
	var total int64
	for _, e := range records {
		if e.Date.InMonth(year, month) {
			total += e.Amount.Paise
		}
	}
	return Money{Paise: total}
}

// MonthlyTotals produces per-month totals for the n calendar months ending
// at the month containing ref, oldest first. Feeds the trend charts.
func MonthlyTotals(records []Expense, ref time.Time, n int) []MonthTotal {
	out := make([]MonthTotal, 0, n)
	for i := n - 1; i >= 0; i-- {
		first := time.Date(ref.Year(), ref.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		y, m := first.Year(), int(first.Month())
		out = append(out, MonthTotal{Year: y, Month: m, Total: TotalForMonth(records, y, m)})
	}
	return out
}

// ClassifyInsight compares the current total against the previous calendar
// month's total. hasPrevious is false when the previous month falls outside
// the supported lookback. A delta within one paisa counts as flat.
func ClassifyInsight(current, previous Money, hasPrevious bool) Insight {
	if !hasPrevious {
		return Insight{Kind: InsightNoHistory}
	}
	if previous.Paise == 0 {
		if current.Paise > 0 {
			return Insight{Kind: InsightFirstPeriod}
		}
		return Insight{Kind: InsightFlat}
	}
	diff := current.Paise - previous.Paise
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	if abs <= flatTolerancePaise {
		return Insight{Kind: InsightFlat}
	}
	pct := float64(abs) / float64(previous.Paise) * 100
	if diff < 0 {
		return Insight{Kind: InsightDecreased, Pct: pct}
	}
	return Insight{Kind: InsightIncreased, Pct: pct}
}
