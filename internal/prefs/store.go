// Package prefs persists user preferences (categories, budget, theme,
// selected month, display mode) across sessions. Values are stored as
// opaque JSON blobs; anything missing or malformed falls back silently to
// built-in defaults and is never surfaced to the user.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

// Storage keys, kept stable so existing databases keep working.
const (
	keyCategories     = "set_cats_v1"
	keyInitialBalance = "set_initial_balance"
	keyTheme          = "set_theme"
	keyUserName       = "set_user_name"
	keyAvatarURL      = "set_avatar_url"
	keySelectedMonth  = "set_selected_month"
	keyMode           = "set_mode"
)

const (
	defaultTheme    = "dark"
	defaultUserName = "User"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

func NewStore(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentPrefs)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "preference read failed, using default",
				"key", key, log.FieldError, err)
		}
		return "", false
	}
	return value, true
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

// Categories returns the persisted category list, or the built-in default
// list when absent or malformed. Uniqueness is enforced on write.
func (s *Store) Categories(ctx context.Context) []string {
	raw, ok := s.get(ctx, keyCategories)
	if !ok {
		return append([]string(nil), core.DefaultCategories...)
	}
	var cats []string
	if err := json.Unmarshal([]byte(raw), &cats); err != nil || len(cats) == 0 {
		return append([]string(nil), core.DefaultCategories...)
	}
	return cats
}

func (s *Store) SaveCategories(ctx context.Context, cats []string) error {
	data, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	return s.set(ctx, keyCategories, string(data))
}

// InitialBalance returns the persisted monthly budget, defaulting when
// absent or unparsable. Stored as a decimal string.
func (s *Store) InitialBalance(ctx context.Context) core.Money {
	raw, ok := s.get(ctx, keyInitialBalance)
	if !ok {
		return core.DefaultInitialBalance
	}
	paise, err := core.ParseDecimalToPaise(raw)
	if err != nil {
		return core.DefaultInitialBalance
	}
	return core.Money{Paise: paise}
}

func (s *Store) SaveInitialBalance(ctx context.Context, balance core.Money) error {
	return s.set(ctx, keyInitialBalance, strconv.FormatFloat(balance.Rupees(), 'f', 2, 64))
}

// SelectedMonth returns the persisted month index, or 0 when absent,
// unparsable or outside the supported range.
func (s *Store) SelectedMonth(ctx context.Context) int {
	raw, ok := s.get(ctx, keySelectedMonth)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < core.AllTimeIndex || n > core.OldestMonthIndex {
		return 0
	}
	return n
}

func (s *Store) SaveSelectedMonth(ctx context.Context, index int) error {
	return s.set(ctx, keySelectedMonth, strconv.Itoa(index))
}

// Mode returns the display mode, defaulting to budget.
func (s *Store) Mode(ctx context.Context) core.Mode {
	raw, ok := s.get(ctx, keyMode)
	if !ok {
		return core.ModeBudget
	}
	switch core.Mode(raw) {
	case core.ModeBudget, core.ModeTrackOnly:
		return core.Mode(raw)
	default:
		return core.ModeBudget
	}
}

func (s *Store) SaveMode(ctx context.Context, mode core.Mode) error {
	return s.set(ctx, keyMode, string(mode))
}

func (s *Store) Theme(ctx context.Context) string {
	if raw, ok := s.get(ctx, keyTheme); ok && (raw == "dark" || raw == "light") {
		return raw
	}
	return defaultTheme
}

func (s *Store) SaveTheme(ctx context.Context, theme string) error {
	return s.set(ctx, keyTheme, theme)
}

func (s *Store) UserName(ctx context.Context) string {
	if raw, ok := s.get(ctx, keyUserName); ok && raw != "" {
		return raw
	}
	return defaultUserName
}

func (s *Store) SaveUserName(ctx context.Context, name string) error {
	return s.set(ctx, keyUserName, name)
}

func (s *Store) AvatarURL(ctx context.Context) string {
	raw, _ := s.get(ctx, keyAvatarURL)
	return raw
}

func (s *Store) SaveAvatarURL(ctx context.Context, url string) error {
	return s.set(ctx, keyAvatarURL, url)
}
