package state

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/memstore"
	"kharcha/internal/notify"
	"kharcha/internal/prefs"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func rupees(n int64) core.Money {
	return core.Money{Paise: n * 100}
}

func newTestController(t *testing.T, backend Backend) *Controller {
	t.Helper()
	store, err := prefs.NewStore(filepath.Join(t.TempDir(), "prefs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	c := NewController(backend, store, notify.New(time.Minute), nil, nil)
	c.now = func() time.Time { return testNow }
	return c
}

// seededStore is June 2024 as "this month": two Food records now, one
// Bills record in May.
func seededStore() *memstore.Store {
	s := memstore.New()
	s.Seed(
		core.Expense{ID: "1", Date: core.NewDate(2024, 6, 5), Note: "lunch", Amount: rupees(200), Category: "Food"},
		core.Expense{ID: "2", Date: core.NewDate(2024, 6, 10), Note: "dinner", Amount: rupees(300), Category: "Food"},
		core.Expense{ID: "3", Date: core.NewDate(2024, 5, 20), Note: "power", Amount: rupees(100), Category: "Bills"},
	)
	return s
}

func TestEndToEndAggregation(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	if err := c.SetInitialBalance(ctx, rupees(1000)); err != nil {
		t.Fatal(err)
	}
	c.Init(ctx)

	snap := c.Snapshot()
	if snap.PeriodTotal != rupees(500) {
		t.Errorf("period total = %s, want ₹500.00", snap.PeriodTotal)
	}
	if snap.Remaining != rupees(500) || snap.OverBudget {
		t.Errorf("remaining = %s over=%v, want ₹500.00 over=false", snap.Remaining, snap.OverBudget)
	}
	if snap.TopCategory != "Food" {
		t.Errorf("top category = %q, want Food", snap.TopCategory)
	}
	if snap.TxnCount != 2 {
		t.Errorf("txn count = %d, want 2", snap.TxnCount)
	}
	if snap.Insight.Kind != core.InsightIncreased || snap.Insight.Pct != 400 {
		t.Errorf("insight = %+v, want increased 400%%", snap.Insight)
	}
	// Table rows come newest first.
	if snap.Expenses[0].ID != "2" || snap.Expenses[1].ID != "1" {
		t.Errorf("row order = %s, %s", snap.Expenses[0].ID, snap.Expenses[1].ID)
	}

	if err := c.SelectMonth(ctx, 1); err != nil {
		t.Fatal(err)
	}
	snap = c.Snapshot()
	if snap.PeriodTotal != rupees(100) {
		t.Errorf("may total = %s, want ₹100.00", snap.PeriodTotal)
	}
	if snap.TopCategory != "Bills" {
		t.Errorf("may top category = %q, want Bills", snap.TopCategory)
	}
	// April has no records: previous total is zero, current 100.
	if snap.Insight.Kind != core.InsightFirstPeriod {
		t.Errorf("may insight = %+v, want first-period", snap.Insight)
	}

	if err := c.SelectMonth(ctx, core.AllTimeIndex); err != nil {
		t.Fatal(err)
	}
	snap = c.Snapshot()
	if snap.PeriodTotal != rupees(600) {
		t.Errorf("all-time total = %s, want ₹600.00", snap.PeriodTotal)
	}
	if snap.TxnCount != 3 {
		t.Errorf("all-time txn count = %d, want 3", snap.TxnCount)
	}
	// All-time compares the current calendar month against the previous one.
	if snap.Insight.Kind != core.InsightIncreased || snap.Insight.Pct != 400 {
		t.Errorf("all-time insight = %+v, want increased 400%%", snap.Insight)
	}
	if snap.Year != 2024 || snap.Month != 6 {
		t.Errorf("all-time display month = %d-%d, want 2024-6", snap.Year, snap.Month)
	}
}

type recordingSurface struct {
	name    string
	applied []Snapshot
}

func (r *recordingSurface) Name() string     { return r.name }
func (r *recordingSurface) Apply(s Snapshot) { r.applied = append(r.applied, s) }

func TestEverySurfaceUpdatedAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	sidebar := &recordingSurface{name: "sidebar"}
	cards := &recordingSurface{name: "cards"}
	c.RegisterSurface(sidebar)
	c.RegisterSurface(cards)
	c.Init(ctx)

	mutations := []func() error{
		func() error {
			return c.AddExpense(ctx, core.Expense{
				Date: core.NewDate(2024, 6, 12), Amount: rupees(50), Category: "Food",
			})
		},
		func() error { return c.SetInitialBalance(ctx, rupees(2000)) },
		func() error { return c.AddCategory(ctx, "Travel") },
		func() error { return c.DeleteCategory(ctx, "Travel") },
		func() error { return c.SelectMonth(ctx, 2) },
	}
	for i, mutate := range mutations {
		before := len(sidebar.applied)
		if err := mutate(); err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
		if len(sidebar.applied) <= before {
			t.Errorf("mutation %d: sidebar not updated", i)
		}
		if len(cards.applied) != len(sidebar.applied) {
			t.Errorf("mutation %d: surfaces diverged (%d vs %d)",
				i, len(cards.applied), len(sidebar.applied))
		}
	}
}

func TestLateSurfaceGetsCurrentSnapshot(t *testing.T) {
	c := newTestController(t, seededStore())
	c.Init(context.Background())

	late := &recordingSurface{name: "late"}
	c.RegisterSurface(late)
	if len(late.applied) != 1 {
		t.Fatalf("late surface applied %d times, want 1", len(late.applied))
	}
	if late.applied[0].PeriodTotal != rupees(500) {
		t.Errorf("late snapshot total = %s", late.applied[0].PeriodTotal)
	}
}

type failingBackend struct {
	*memstore.Store
	failWrites bool
	creates    int
}

func (f *failingBackend) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	f.creates++
	if f.failWrites {
		return core.Expense{}, errors.New("backend unavailable")
	}
	return f.Store.Create(ctx, e)
}

func TestWriteFailureLeavesDatasetUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Store: seededStore(), failWrites: true}
	c := newTestController(t, backend)
	c.Init(ctx)
	before := c.Snapshot()

	err := c.AddExpense(ctx, core.Expense{
		Date: core.NewDate(2024, 6, 12), Amount: rupees(50), Category: "Food",
	})
	if err == nil {
		t.Fatal("expected error from failed write")
	}

	after := c.Snapshot()
	if after.PeriodTotal != before.PeriodTotal || after.TxnCount != before.TxnCount {
		t.Errorf("dataset changed after failed write: %s/%d -> %s/%d",
			before.PeriodTotal, before.TxnCount, after.PeriodTotal, after.TxnCount)
	}

	var sawError bool
	for _, n := range c.Notices() {
		if n.Kind == notify.Error {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no error notice after failed write")
	}
}

func TestValidationBlocksSubmission(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Store: seededStore()}
	c := newTestController(t, backend)
	c.Init(ctx)

	tests := []struct {
		name string
		e    core.Expense
		want error
	}{
		{"zero amount", core.Expense{Date: core.NewDate(2024, 6, 1), Category: "Food"}, core.ErrInvalidAmount},
		{"negative amount", core.Expense{Date: core.NewDate(2024, 6, 1), Amount: core.Money{Paise: -100}, Category: "Food"}, core.ErrInvalidAmount},
		{"blank category", core.Expense{Date: core.NewDate(2024, 6, 1), Amount: rupees(10), Category: "  "}, core.ErrEmptyCategory},
		{"zero date", core.Expense{Amount: rupees(10), Category: "Food"}, core.ErrZeroDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.AddExpense(ctx, tt.e); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if backend.creates != 0 {
		t.Errorf("backend received %d creates, want 0", backend.creates)
	}
}

func TestCreateSelectsMonthOfNewRecord(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	tests := []struct {
		name string
		date core.Date
		want int
	}{
		{"three months back", core.NewDate(2024, 3, 10), 3},
		{"current month", core.NewDate(2024, 6, 1), 0},
		{"outside window", core.NewDate(2022, 1, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddExpense(ctx, core.Expense{
				Date: tt.date, Amount: rupees(10), Category: "Other",
			})
			if err != nil {
				t.Fatal(err)
			}
			if got := c.Snapshot().MonthIndex; got != tt.want {
				t.Errorf("selected month = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTrackOnlyModeSuppressesBudget(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	if err := c.SetMode(ctx, core.ModeTrackOnly); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.BudgetApplies {
		t.Error("budget figures still apply in track-only mode")
	}
	if snap.OverBudget {
		t.Error("over-budget flag set in track-only mode")
	}
	if snap.PeriodTotal != rupees(500) {
		t.Errorf("period total = %s, spend tracking must survive mode switch", snap.PeriodTotal)
	}

	if err := c.SetMode(ctx, core.ModeBudget); err != nil {
		t.Fatal(err)
	}
	if !c.Snapshot().BudgetApplies {
		t.Error("budget figures missing after switching back")
	}
}

func TestOverBudgetClampsRemaining(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	if err := c.SetInitialBalance(ctx, rupees(300)); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if !snap.OverBudget {
		t.Error("over-budget flag not set")
	}
	if snap.Remaining.Paise != 0 {
		t.Errorf("remaining = %s, want ₹0.00", snap.Remaining)
	}
}

func TestDuplicateCategoryRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	if err := c.AddCategory(ctx, "Food"); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("err = %v, want duplicate category", err)
	}
	// Matching is case-sensitive, so a different casing is a new label.
	if err := c.AddCategory(ctx, "food"); err != nil {
		t.Errorf("lowercase variant rejected: %v", err)
	}
	if err := c.AddCategory(ctx, "   "); !errors.Is(err, core.ErrEmptyCategoryName) {
		t.Errorf("blank name err = %v", err)
	}
}

func TestDeleteCategoryKeepsOrphanRecords(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	if err := c.DeleteCategory(ctx, "Food"); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	for _, cat := range snap.Categories {
		if cat == "Food" {
			t.Error("Food still in category list")
		}
	}
	// Records keep their raw label and still group under it.
	if snap.TopCategory != "Food" {
		t.Errorf("top category = %q, orphaned records must keep grouping", snap.TopCategory)
	}
}

func TestSelectMonthRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, seededStore())
	c.Init(ctx)

	for _, index := range []int{-2, 12, 99} {
		if err := c.SelectMonth(ctx, index); err == nil {
			t.Errorf("index %d accepted", index)
		}
	}
}

// barrierBackend blocks every monthly fetch until all expected fetches of
// one refresh have arrived. A sequential window-then-period pipeline never
// reaches the barrier and times out.
type barrierBackend struct {
	mu       sync.Mutex
	arrived  int
	need     int
	release  chan struct{}
	timedOut bool
}

func newBarrierBackend(need int) *barrierBackend {
	return &barrierBackend{need: need, release: make(chan struct{})}
}

func (b *barrierBackend) ListMonthly(context.Context, int, int) ([]core.Expense, error) {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.need {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
		return nil, nil
	case <-time.After(2 * time.Second):
		b.mu.Lock()
		b.timedOut = true
		b.mu.Unlock()
		return nil, errors.New("fetch stalled waiting for concurrent siblings")
	}
}

func (b *barrierBackend) Create(context.Context, core.Expense) (core.Expense, error) {
	return core.Expense{}, errors.New("not supported")
}
func (b *barrierBackend) Update(context.Context, core.Expense) error { return errors.New("not supported") }
func (b *barrierBackend) Delete(context.Context, string) error       { return errors.New("not supported") }

func TestRefreshLoadsWindowAndPeriodConcurrently(t *testing.T) {
	// Twelve window fetches plus the selected-period fetch.
	backend := newBarrierBackend(core.WindowMonths + 1)
	c := newTestController(t, backend)

	c.Refresh(context.Background())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.timedOut {
		t.Fatal("fetches ran sequentially: the period fetch never joined the window fetches")
	}
	if backend.arrived != core.WindowMonths+1 {
		t.Errorf("got %d fetches, want %d", backend.arrived, core.WindowMonths+1)
	}
}

func TestSelectedMonthSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := prefs.NewStore(filepath.Join(dir, "prefs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}

	c := NewController(seededStore(), store, notify.New(time.Minute), nil, nil)
	c.now = func() time.Time { return testNow }
	c.Init(ctx)
	if err := c.SelectMonth(ctx, 4); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = prefs.NewStore(filepath.Join(dir, "prefs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	c2 := NewController(seededStore(), store, notify.New(time.Minute), nil, nil)
	c2.now = func() time.Time { return testNow }
	c2.Init(ctx)
	if got := c2.Snapshot().MonthIndex; got != 4 {
		t.Errorf("month index after restart = %d, want 4", got)
	}
}
