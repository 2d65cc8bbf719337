// Package views renders state snapshots into the view models served over
// HTTP. Each surface keeps only the latest model; a new snapshot replaces
// it wholesale, so surfaces can never disagree about the dataset.
package views

import (
	"fmt"
	"sync"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/state"
)

// NoValue is shown where a figure is suppressed, e.g. the remaining
// balance in track-only mode.
const NoValue = "—"

// MonthOption is one entry of the period picker.
type MonthOption struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// SidebarModel drives the navigation pane: identity, theme and the period
// picker.
type SidebarModel struct {
	UserName  string        `json:"userName"`
	AvatarURL string        `json:"avatarUrl"`
	Theme     string        `json:"theme"`
	Mode      string        `json:"mode"`
	Months    []MonthOption `json:"months"`
}

// SummaryModel drives the headline cards.
type SummaryModel struct {
	PeriodLabel  string `json:"periodLabel"`
	PeriodTotal  string `json:"periodTotal"`
	AllTimeTotal string `json:"allTimeTotal"`
	Remaining    string `json:"remaining"`
	OverBudget   bool   `json:"overBudget"`
	TxnCount     int    `json:"txnCount"`
	TopCategory  string `json:"topCategory"`
	Insight      string `json:"insight"`
}

// ChartModel carries the datasets behind the charts: one point per day of
// the displayed month, one per month of the trend, one per category group.
type ChartModel struct {
	DailyLabels  []int     `json:"dailyLabels"`
	DailyValues  []float64 `json:"dailyValues"`
	TrendLabels  []string  `json:"trendLabels"`
	TrendValues  []float64 `json:"trendValues"`
	GroupLabels  []string  `json:"groupLabels"`
	GroupValues  []float64 `json:"groupValues"`
	TopSixLabels []string  `json:"topSixLabels"`
	TopSixValues []float64 `json:"topSixValues"`
}

// TableRow is one rendered expense row.
type TableRow struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Note     string `json:"note"`
	Amount   string `json:"amount"`
}

// TableModel drives the expense table, newest first.
type TableModel struct {
	Rows []TableRow `json:"rows"`
}

// SettingsModel drives the settings panel.
type SettingsModel struct {
	Categories     []string `json:"categories"`
	InitialBalance string   `json:"initialBalance"`
	Mode           string   `json:"mode"`
	UserName       string   `json:"userName"`
	AvatarURL      string   `json:"avatarUrl"`
	Theme          string   `json:"theme"`
}

// Sidebar is the navigation surface.
type Sidebar struct {
	mu    sync.RWMutex
	model SidebarModel
}

func (s *Sidebar) Name() string { return "sidebar" }

func (s *Sidebar) Apply(snap state.Snapshot) {
	months := make([]MonthOption, 0, core.WindowMonths+1)
	months = append(months, MonthOption{
		Index:    core.AllTimeIndex,
		Label:    "All time",
		Selected: snap.MonthIndex == core.AllTimeIndex,
	})
	for i := 0; i < core.WindowMonths; i++ {
		first := time.Date(snap.LoadedAt.Year(), snap.LoadedAt.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		months = append(months, MonthOption{
			Index:    i,
			Label:    first.Format("Jan 2006"),
			Selected: snap.MonthIndex == i,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = SidebarModel{
		UserName:  snap.UserName,
		AvatarURL: snap.AvatarURL,
		Theme:     snap.Theme,
		Mode:      string(snap.Mode),
		Months:    months,
	}
}

func (s *Sidebar) Model() SidebarModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Summary renders the headline cards.
type Summary struct {
	mu    sync.RWMutex
	model SummaryModel
}

func (s *Summary) Name() string { return "summary" }

func (s *Summary) Apply(snap state.Snapshot) {
	remaining := NoValue
	if snap.BudgetApplies {
		remaining = snap.Remaining.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = SummaryModel{
		PeriodLabel:  periodLabel(snap),
		PeriodTotal:  snap.PeriodTotal.String(),
		AllTimeTotal: snap.AllTimeTotal.String(),
		Remaining:    remaining,
		OverBudget:   snap.BudgetApplies && snap.OverBudget,
		TxnCount:     snap.TxnCount,
		TopCategory:  snap.TopCategory,
		Insight:      InsightText(snap.Insight),
	}
}

func (s *Summary) Model() SummaryModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Charts renders the chart datasets.
type Charts struct {
	mu    sync.RWMutex
	model ChartModel
}

func (c *Charts) Name() string { return "charts" }

func (c *Charts) Apply(snap state.Snapshot) {
	m := ChartModel{}
	for day, amount := range snap.DailyTotals {
		m.DailyLabels = append(m.DailyLabels, day+1)
		m.DailyValues = append(m.DailyValues, amount.Rupees())
	}
	for _, month := range snap.MonthlyTrend {
		first := time.Date(month.Year, time.Month(month.Month), 1, 0, 0, 0, 0, time.UTC)
		m.TrendLabels = append(m.TrendLabels, first.Format("Jan"))
		m.TrendValues = append(m.TrendValues, month.Total.Rupees())
	}
	for _, g := range snap.CategoryGroups {
		m.GroupLabels = append(m.GroupLabels, g.Name)
		m.GroupValues = append(m.GroupValues, g.Amount.Rupees())
	}
	for _, g := range snap.SixMonthTop {
		m.TopSixLabels = append(m.TopSixLabels, g.Name)
		m.TopSixValues = append(m.TopSixValues, g.Amount.Rupees())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = m
}

func (c *Charts) Model() ChartModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Table renders the expense rows.
type Table struct {
	mu    sync.RWMutex
	model TableModel
}

func (t *Table) Name() string { return "table" }

func (t *Table) Apply(snap state.Snapshot) {
	rows := make([]TableRow, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		rows = append(rows, TableRow{
			ID:       e.ID,
			Date:     e.Date.Format("2006-01-02"),
			Category: e.Category,
			Note:     e.Note,
			Amount:   e.Amount.String(),
		})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = TableModel{Rows: rows}
}

func (t *Table) Model() TableModel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model
}

// Settings renders the settings panel.
type Settings struct {
	mu    sync.RWMutex
	model SettingsModel
}

func (s *Settings) Name() string { return "settings" }

func (s *Settings) Apply(snap state.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = SettingsModel{
		Categories:     snap.Categories,
		InitialBalance: snap.InitialBalance.String(),
		Mode:           string(snap.Mode),
		UserName:       snap.UserName,
		AvatarURL:      snap.AvatarURL,
		Theme:          snap.Theme,
	}
}

func (s *Settings) Model() SettingsModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// InsightText renders the month-over-month comparison as a sentence.
func InsightText(in core.Insight) string {
	switch in.Kind {
	case core.InsightNoHistory:
		return "No earlier month to compare against"
	case core.InsightFirstPeriod:
		return "First month with recorded spending"
	case core.InsightIncreased:
		return fmt.Sprintf("Spending up %.0f%% vs previous month", in.Pct)
	case core.InsightDecreased:
		return fmt.Sprintf("Spending down %.0f%% vs previous month", in.Pct)
	default:
		return "Spending about the same as previous month"
	}
}

func periodLabel(snap state.Snapshot) string {
	if snap.MonthIndex == core.AllTimeIndex {
		return "All time"
	}
	first := time.Date(snap.Year, time.Month(snap.Month), 1, 0, 0, 0, 0, time.UTC)
	return first.Format("January 2006")
}
