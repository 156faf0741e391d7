package core

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// GenerateMonthID returns the canonical "YYYY-MM" key of the month containing t.
// Ids sort lexicographically in chronological order.
func GenerateMonthID(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// MonthLabel returns the localized month name followed by the four-digit year.
func MonthLabel(t time.Time, loc Locale) string {
	return fmt.Sprintf("%s %04d", loc.MonthNames[int(t.Month())-1], t.Year())
}

// ParseMonthID splits a "YYYY-MM" key into its year and month.
func ParseMonthID(id string) (year, month int, err error) {
	if len(id) != 7 || id[4] != '-' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthID, id)
	}
	year, err = strconv.Atoi(id[:4])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthID, id)
	}
	month, err = strconv.Atoi(id[5:])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthID, id)
	}
	return year, month, nil
}

// MonthStart returns the first day of the month identified by id.
func MonthStart(id string) (time.Time, error) {
	y, m, err := ParseMonthID(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC), nil
}

// PreviousMonthID returns the key of the month before id.
func PreviousMonthID(id string) (string, error) {
	start, err := MonthStart(id)
	if err != nil {
		return "", err
	}
	return GenerateMonthID(start.AddDate(0, -1, 0)), nil
}

// SortMonths orders months newest first.
func SortMonths(months []Month) {
	sort.SliceStable(months, func(i, j int) bool {
		return months[i].ID > months[j].ID
	})
}
