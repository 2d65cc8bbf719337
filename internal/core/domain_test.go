package core

import (
	"errors"
	"testing"
)

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		ID:       "1",
		Date:     NewDate(2024, 3, 3),
		Amount:   Money{Paise: 100},
		Category: "Food",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero date", func(e *Expense) { e.Date = Date{} }, ErrZeroDate},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount = Money{Paise: -5} }, ErrInvalidAmount},
		{"blank category", func(e *Expense) { e.Category = "  " }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDateInMonth(t *testing.T) {
	d := NewDate(2024, 3, 31)
	if !d.InMonth(2024, 3) {
		t.Error("expected in month")
	}
	if d.InMonth(2024, 4) || d.InMonth(2023, 3) {
		t.Error("expected out of month")
	}
}
