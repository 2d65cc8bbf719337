// Package core holds the expense data model and the aggregation engine.
//
// This file contains money parsing and formatting. Amounts travel through
// the system as integer paise; floats appear only at the API boundary and
// in display formatting.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToPaise converts a decimal string to paise with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted. Returns an error for negative, zero or malformed input.
func ParseDecimalToPaise(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracPaise int64
	if len(fracPart) > 0 {
		fracPaise = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracPaise += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracPaise++
			}
		}
	}
	paise := iv*100 + fracPaise
	if paise <= 0 {
		return 0, ErrInvalidAmount
	}
	return paise, nil
}

// MoneyFromFloat converts a decimal rupee amount (as carried on the wire)
// to Money, rounding half away from zero to the nearest paisa.
func MoneyFromFloat(v float64) Money {
	return Money{Paise: int64(math.Round(v * 100))}
}

// Rupees returns the rupee value as a float64 for wire encoding and
// display. Use paise for calculations.
func (m Money) Rupees() float64 {
	return float64(m.Paise) / 100.0
}

// String formats the amount with a rupee sign and two decimals, the way
// every display surface shows it.
func (m Money) String() string {
	neg := m.Paise < 0
	p := m.Paise
	if neg {
		p = -p
	}
	s := "₹" + strconv.FormatInt(p/100, 10) + "." + pad2(p%100)
	if neg {
		return "-" + s
	}
	return s
}

// DecimalString formats the amount as a plain decimal with trailing zeros
// trimmed (200, 12.5, 0.07). Used by the CSV export.
func (m Money) DecimalString() string {
	return strconv.FormatFloat(m.Rupees(), 'f', -1, 64)
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
