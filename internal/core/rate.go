// Package core provides the domain model of the time tracker: projects, time entries,
// their validation rules, the weekly aggregation and value formatting helpers.
//
// This file contains parsing and formatting of hourly rates, money and durations.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidRate is returned by ParseRate for malformed input.
var ErrInvalidRate = errors.New("invalid hourly rate")

// ParseRate converts a decimal string to an hourly rate.
//
// It accepts both dot (12.50) and comma (12,50) decimal separators and an optional
// leading currency symbol. Signs, exponents and thousands separators are rejected.
//
// Examples:
//
//	ParseRate("50")    -> 50, nil
//	ParseRate("42,5")  -> 42.5, nil
//	ParseRate("$75.25") -> 75.25, nil
func ParseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidRate
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidRate
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidRate
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ErrInvalidRate
	}
	return v, nil
}

// FormatCurrency renders an amount as US dollars with thousands separators, e.g. "$1,234.50".
func FormatCurrency(amount float64) string {
	neg := amount < 0
	cents := int64(math.Round(math.Abs(amount) * 100))
	whole := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	frac := cents % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}

// FormatDuration renders fractional hours as "3h 15m".
func FormatDuration(hours float64) string {
	whole := math.Floor(hours)
	minutes := math.Round((hours - whole) * 60)
	if minutes == 60 {
		whole++
		minutes = 0
	}
	return strconv.Itoa(int(whole)) + "h " + strconv.Itoa(int(minutes)) + "m"
}
