// Package state owns the working dataset and drives every surface from it.
// Mutations go through the controller, which refreshes the dataset from the
// backend and republishes one consistent snapshot to all registered
// surfaces after every change.
package state

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/log"
	"kharcha/internal/notify"
	"kharcha/internal/period"
	"kharcha/internal/prefs"
)

// Backend is the upstream expense store. The REST client and the in-memory
// store both satisfy it.
type Backend interface {
	ListMonthly(ctx context.Context, year, month int) ([]core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher notifies sibling clients of dataset mutations. Optional;
// a nil publisher disables events entirely.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, action, expenseID string) error
}

// Controller serializes all mutations and keeps the dataset, preferences
// and derived snapshot coherent. One instance serves the whole process.
type Controller struct {
	backend   Backend
	loader    *period.Loader
	prefs     *prefs.Store
	notifier  *notify.Notifier
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time

	mu         sync.Mutex
	surfaces   []Surface
	phase      Phase
	monthIndex int
	mode       core.Mode
	categories []string
	balance    core.Money
	userName   string
	avatarURL  string
	theme      string
	window     []core.Expense
	expenses   []core.Expense
	snapshot   Snapshot
}

func NewController(backend Backend, store *prefs.Store, notifier *notify.Notifier, publisher EventPublisher, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentState)
	}
	if notifier == nil {
		notifier = notify.New(notify.DefaultLifetime)
	}
	return &Controller{
		backend:   backend,
		loader:    period.NewLoader(backend, logger.WithComponent(log.ComponentPeriod)),
		prefs:     store,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		phase:     PhaseIdle,
	}
}

// RegisterSurface subscribes a surface to snapshot updates. Surfaces added
// after the first refresh immediately receive the current snapshot.
func (c *Controller) RegisterSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surfaces = append(c.surfaces, s)
	if c.phase == PhaseReady {
		s.Apply(c.snapshot)
	}
}

// Init loads persisted preferences and performs the first full refresh.
func (c *Controller) Init(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monthIndex = c.prefs.SelectedMonth(ctx)
	c.mode = c.prefs.Mode(ctx)
	c.categories = c.prefs.Categories(ctx)
	c.balance = c.prefs.InitialBalance(ctx)
	c.userName = c.prefs.UserName(ctx)
	c.avatarURL = c.prefs.AvatarURL(ctx)
	c.theme = c.prefs.Theme(ctx)

	c.logger.InfoContext(ctx, "initial load",
		log.FieldOperation, log.OpStartup,
		log.FieldMonthIndex, c.monthIndex,
		"mode", string(c.mode))
	c.refreshLocked(ctx)
}

// Refresh reloads the window and the selected period from the backend and
// republishes. Read failures degrade to empty collections; they never
// surface as errors.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(ctx)
}

// refreshLocked loads the window and the selected period concurrently and
// joins both before any aggregation runs. The all-time selection has no
// fetch of its own; it snapshots the window once it lands.
func (c *Controller) refreshLocked(ctx context.Context) {
	c.phase = PhaseLoading
	ref := c.now()

	var (
		window    []core.Expense
		records   []core.Expense
		periodErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		window, _ = c.loader.LoadWindow(ctx, ref)
		return nil
	})
	if c.monthIndex != core.AllTimeIndex {
		g.Go(func() error {
			records, periodErr = c.loader.LoadPeriod(ctx, c.monthIndex, ref, nil)
			return nil
		})
	}
	// Load errors are captured per leg, never returned.
	_ = g.Wait()

	if c.monthIndex == core.AllTimeIndex {
		records, periodErr = c.loader.LoadPeriod(ctx, core.AllTimeIndex, ref, window)
	}
	if periodErr != nil {
		c.notifier.Errorf("Could not load the selected month")
	}

	c.window = window
	c.expenses = records
	c.rebuildLocked(ref)
}

// rebuildLocked recomputes the snapshot from the in-memory dataset and
// pushes it to every registered surface. Callers hold c.mu.
func (c *Controller) rebuildLocked(ref time.Time) {
	snap := Snapshot{
		MonthIndex:     c.monthIndex,
		Mode:           c.mode,
		Categories:     append([]string(nil), c.categories...),
		InitialBalance: c.balance,
		UserName:       c.userName,
		AvatarURL:      c.avatarURL,
		Theme:          c.theme,
		Expenses:       sortByDateDesc(c.expenses),
		AllTime:        append([]core.Expense(nil), c.window...),
		PeriodTotal:    core.PeriodTotal(c.expenses),
		AllTimeTotal:   core.PeriodTotal(c.window),
		TxnCount:       len(c.expenses),
		TopCategory:    core.TopCategory(c.expenses),
		CategoryGroups: core.CategoryBreakdown(c.expenses),
		MonthlyTrend:   core.MonthlyTotals(c.window, ref, 6),
		LoadedAt:       ref,
	}

	// Day-granular surfaces always show a real calendar month; the
	// all-time selection falls back to the current one.
	displayIndex := c.monthIndex
	if displayIndex == core.AllTimeIndex {
		displayIndex = 0
	}
	snap.Year, snap.Month = period.ResolveCalendarMonth(displayIndex, ref)
	snap.DailyTotals = core.DailyBreakdown(snap.Expenses, snap.Year, snap.Month)

	cutoff := time.Date(ref.Year(), ref.Month()-5, 1, 0, 0, 0, 0, time.UTC)
	snap.SixMonthTop = core.TopCategoriesSince(c.window, cutoff, 8)

	if c.mode == core.ModeBudget {
		snap.BudgetApplies = true
		snap.Remaining, snap.OverBudget = core.RemainingBudget(c.balance, snap.PeriodTotal)
	}

	snap.Insight = c.insightLocked(snap, ref)

	c.snapshot = snap
	c.phase = PhaseReady
	for _, s := range c.surfaces {
		s.Apply(snap)
		c.logger.Debug("surface updated", log.FieldSurface, s.Name())
	}
}

// insightLocked compares the displayed month against the one before it.
// The all-time selection is compared as if the current month were shown.
func (c *Controller) insightLocked(snap Snapshot, ref time.Time) core.Insight {
	baseIndex := c.monthIndex
	if baseIndex == core.AllTimeIndex {
		baseIndex = 0
	}
	prevIndex := baseIndex + 1
	if prevIndex > core.OldestMonthIndex {
		return core.ClassifyInsight(core.Money{}, core.Money{}, false)
	}

	current := snap.PeriodTotal
	if c.monthIndex == core.AllTimeIndex {
		current = core.TotalForMonth(c.window, snap.Year, snap.Month)
	}
	py, pm := period.ResolveCalendarMonth(prevIndex, ref)
	previous := core.TotalForMonth(c.window, py, pm)
	return core.ClassifyInsight(current, previous, true)
}

// SelectMonth switches the visible period, persists the choice and
// refreshes. Index must be a window index or the all-time index.
func (c *Controller) SelectMonth(ctx context.Context, index int) error {
	if index < core.AllTimeIndex || index > core.OldestMonthIndex {
		return fmt.Errorf("month index %d out of range", index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.monthIndex = index
	if err := c.prefs.SaveSelectedMonth(ctx, index); err != nil {
		c.logger.WarnContext(ctx, "could not persist selected month", log.FieldError, err)
	}
	c.refreshLocked(ctx)
	return nil
}

// AddExpense validates and submits a new record. Invalid records are
// rejected locally and never reach the backend. On success the selection
// jumps to the month the record landed in.
func (c *Controller) AddExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		c.notifier.Errorf("Please fill date, amount and category")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	created, err := c.backend.Create(ctx, e)
	if err != nil {
		c.logger.ErrorContext(ctx, "create failed",
			log.FieldOperation, log.OpCreate, log.FieldError, err)
		c.notifier.Errorf("Could not save the expense")
		c.refreshLocked(ctx)
		return err
	}

	c.notifier.Successf("Expense added")
	c.publishEvent(ctx, events.ActionCreated, created.ID)

	// Follow the new record: select the month it landed in when that
	// month is inside the window, otherwise fall back to the current one.
	index := monthsAgo(created.Date.Time, c.now())
	if index < 0 || index > core.OldestMonthIndex {
		index = 0
	}
	c.monthIndex = index
	if err := c.prefs.SaveSelectedMonth(ctx, index); err != nil {
		c.logger.WarnContext(ctx, "could not persist selected month", log.FieldError, err)
	}

	c.refreshLocked(ctx)
	return nil
}

// UpdateExpense validates and submits changes to an existing record.
func (c *Controller) UpdateExpense(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		c.notifier.Errorf("Missing expense id")
		return fmt.Errorf("update: missing expense id")
	}
	if err := e.Validate(); err != nil {
		c.notifier.Errorf("Please fill date, amount and category")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Update(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "update failed",
			log.FieldOperation, log.OpUpdate, log.FieldExpenseID, e.ID, log.FieldError, err)
		c.notifier.Errorf("Could not update the expense")
		c.refreshLocked(ctx)
		return err
	}

	c.notifier.Successf("Expense updated")
	c.publishEvent(ctx, events.ActionUpdated, e.ID)
	c.refreshLocked(ctx)
	return nil
}

// DeleteExpense removes a record upstream and refreshes.
func (c *Controller) DeleteExpense(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete: missing expense id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Delete(ctx, id); err != nil {
		c.logger.ErrorContext(ctx, "delete failed",
			log.FieldOperation, log.OpDelete, log.FieldExpenseID, id, log.FieldError, err)
		c.notifier.Errorf("Could not delete the expense")
		c.refreshLocked(ctx)
		return err
	}

	c.notifier.Successf("Expense deleted")
	c.publishEvent(ctx, events.ActionDeleted, id)
	c.refreshLocked(ctx)
	return nil
}

// SetInitialBalance updates the monthly budget. Zero is allowed; negative
// amounts are rejected.
func (c *Controller) SetInitialBalance(ctx context.Context, balance core.Money) error {
	if balance.Paise < 0 {
		c.notifier.Errorf("Budget must not be negative")
		return core.ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.balance = balance
	if err := c.prefs.SaveInitialBalance(ctx, balance); err != nil {
		c.logger.WarnContext(ctx, "could not persist budget", log.FieldError, err)
	}
	c.notifier.Successf("Monthly budget updated")
	c.publishEvent(ctx, events.ActionBudgetChanged, "")
	c.rebuildLocked(c.now())
	return nil
}

// AddCategory appends a new label to the category list. Matching is
// case-sensitive: "food" and "Food" are distinct labels.
func (c *Controller) AddCategory(ctx context.Context, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		c.notifier.Errorf("Category name cannot be empty")
		return core.ErrEmptyCategoryName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.categories {
		if existing == trimmed {
			c.notifier.Errorf("Category already exists")
			return core.ErrDuplicateCategory
		}
	}
	c.categories = append(c.categories, trimmed)
	if err := c.prefs.SaveCategories(ctx, c.categories); err != nil {
		c.logger.WarnContext(ctx, "could not persist categories", log.FieldError, err)
	}
	c.notifier.Successf("Category added")
	c.rebuildLocked(c.now())
	return nil
}

// DeleteCategory removes a label from the category list. Existing records
// keep their raw label; the breakdown still groups them under it.
func (c *Controller) DeleteCategory(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.categories[:0]
	removed := false
	for _, existing := range c.categories {
		if existing == name {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return fmt.Errorf("category %q not found", name)
	}
	c.categories = kept
	if err := c.prefs.SaveCategories(ctx, c.categories); err != nil {
		c.logger.WarnContext(ctx, "could not persist categories", log.FieldError, err)
	}
	c.notifier.Successf("Category removed")
	c.rebuildLocked(c.now())
	return nil
}

// SetMode switches between budget and track-only display modes.
func (c *Controller) SetMode(ctx context.Context, mode core.Mode) error {
	if mode != core.ModeBudget && mode != core.ModeTrackOnly {
		return fmt.Errorf("unknown mode %q", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	if err := c.prefs.SaveMode(ctx, mode); err != nil {
		c.logger.WarnContext(ctx, "could not persist mode", log.FieldError, err)
	}
	c.rebuildLocked(c.now())
	return nil
}

// SetProfile updates display name, avatar and theme together.
func (c *Controller) SetProfile(ctx context.Context, name, avatarURL, theme string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if trimmed := strings.TrimSpace(name); trimmed != "" {
		c.userName = trimmed
		if err := c.prefs.SaveUserName(ctx, trimmed); err != nil {
			c.logger.WarnContext(ctx, "could not persist user name", log.FieldError, err)
		}
	}
	c.avatarURL = avatarURL
	if err := c.prefs.SaveAvatarURL(ctx, avatarURL); err != nil {
		c.logger.WarnContext(ctx, "could not persist avatar url", log.FieldError, err)
	}
	if theme == "dark" || theme == "light" {
		c.theme = theme
		if err := c.prefs.SaveTheme(ctx, theme); err != nil {
			c.logger.WarnContext(ctx, "could not persist theme", log.FieldError, err)
		}
	}
	c.notifier.Successf("Profile saved")
	c.rebuildLocked(c.now())
	return nil
}

// ExportCSV streams the all-time window as CSV, newest first.
func (c *Controller) ExportCSV(w io.Writer) error {
	c.mu.Lock()
	records := sortByDateDesc(c.window)
	c.mu.Unlock()
	return core.WriteCSV(w, records)
}

// Snapshot returns a copy of the latest published snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Phase reports the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Notices returns the active transient notices.
func (c *Controller) Notices() []notify.Notice {
	return c.notifier.Active()
}

func (c *Controller) publishEvent(ctx context.Context, action, expenseID string) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishExpenseEvent(ctx, action, expenseID); err != nil {
		c.logger.WarnContext(ctx, "event publish failed",
			"action", action, log.FieldExpenseID, expenseID, log.FieldError, err)
	}
}

// monthsAgo counts whole calendar months between the month of t and the
// month of ref. Same month is 0; future months are negative.
func monthsAgo(t, ref time.Time) int {
	return (ref.Year()-t.Year())*12 + int(ref.Month()) - int(t.Month())
}

// sortByDateDesc copies records and orders them newest first; equal dates
// keep their input order.
func sortByDateDesc(records []core.Expense) []core.Expense {
	out := append([]core.Expense(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

