package core

import (
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	records := []Expense{
		{ID: "a1", Date: NewDate(2024, 3, 3), Note: `lunch with "friends"`, Amount: Money{Paise: 20000}, Category: "Food"},
		{ID: "b2", Date: NewDate(2024, 2, 1), Note: "", Amount: Money{Paise: 1250}, Category: "Bills"},
	}
	var b strings.Builder
	if err := WriteCSV(&b, records); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(b.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0] != "Date,Category,Note,Amount,Id" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `2024-03-03,Food,"lunch with ""friends""",200,a1` {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != `2024-02-01,Bills,"",12.5,b2` {
		t.Errorf("row 2 = %q", lines[2])
	}
}
