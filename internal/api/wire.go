package api

import (
	"fmt"
	"time"

	"kharcha/internal/core"
)

// expenseDTO is the JSON shape of an expense record on the wire.
type expenseDTO struct {
	ID           string  `json:"id,omitempty"`
	Date         string  `json:"date"`
	Note         string  `json:"note"`
	Amount       float64 `json:"amount"`
	CategoryName string  `json:"categoryName"`
}

func fromExpense(e core.Expense, withID bool) expenseDTO {
	dto := expenseDTO{
		Date:         e.Date.Format(wireDateLayout),
		Note:         e.Note,
		Amount:       e.Amount.Rupees(),
		CategoryName: e.Category,
	}
	if withID {
		dto.ID = e.ID
	}
	return dto
}

func (d expenseDTO) toExpense() (core.Expense, error) {
	date, err := parseWireDate(d.Date)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:       d.ID,
		Date:     date,
		Note:     d.Note,
		Amount:   core.MoneyFromFloat(d.Amount),
		Category: d.CategoryName,
	}, nil
}

// parseWireDate accepts full ISO-8601 timestamps and falls back to the
// date portion alone. Day granularity is all that matters downstream.
func parseWireDate(s string) (core.Date, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.NewDate(t.UTC().Year(), int(t.UTC().Month()), t.UTC().Day()), nil
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return core.Date{Time: t}, nil
		}
	}
	return core.Date{}, fmt.Errorf("unrecognized date %q", s)
}
