package state

import (
	"time"

	"kharcha/internal/core"
)

// Phase is the page-lifecycle state. Failures never produce a terminal
// error phase; a failed load lands back in Ready with empty data.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// Snapshot is one consistent aggregate view of the working dataset. Every
// registered surface receives the same snapshot after every mutation, so
// no surface can go stale relative to another.
type Snapshot struct {
	MonthIndex int
	// Year/Month is the calendar month shown by day-granular surfaces.
	// For the all-time index this is the current calendar month.
	Year  int
	Month int

	Mode           core.Mode
	Categories     []string
	InitialBalance core.Money
	UserName       string
	AvatarURL      string
	Theme          string

	// Working dataset copies.
	Expenses []core.Expense
	AllTime  []core.Expense

	// Derived figures.
	PeriodTotal  core.Money
	AllTimeTotal core.Money
	TxnCount     int

	// Budget figures; meaningful only when BudgetApplies.
	BudgetApplies bool
	Remaining     core.Money
	OverBudget    bool

	TopCategory    string
	Insight        core.Insight
	CategoryGroups []core.CategoryAmount
	DailyTotals    []core.Money
	MonthlyTrend   []core.MonthTotal
	SixMonthTop    []core.CategoryAmount

	LoadedAt time.Time
}

// Surface is one output destination for aggregate snapshots. Surfaces are
// optional subscribers: the aggregation never depends on any particular
// surface existing.
type Surface interface {
	Name() string
	Apply(Snapshot)
}
