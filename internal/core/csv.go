package core

import (
	"io"
	"strings"
)

// csvHeader matches the export format consumed by downstream spreadsheets.
const csvHeader = "Date,Category,Note,Amount,Id"

// WriteCSV writes one row per record: dates truncated to YYYY-MM-DD, the
// note always double-quoted with inner quotes doubled, amounts as plain
// decimals. Category and id are written raw.
func WriteCSV(w io.Writer, records []Expense) error {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, e := range records {
		b.WriteByte('\n')
		b.WriteString(e.Date.Format("2006-01-02"))
		b.WriteByte(',')
		b.WriteString(e.Category)
		b.WriteString(`,"`)
		b.WriteString(strings.ReplaceAll(e.Note, `"`, `""`))
		b.WriteString(`",`)
		b.WriteString(e.Amount.DecimalString())
		b.WriteByte(',')
		b.WriteString(e.ID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
