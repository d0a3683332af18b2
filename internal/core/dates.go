package core

import "time"

// Date-range helpers for list query parameters. Weeks start on Monday.

// Today returns the current date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format(DateLayout)
}

// WeekStart returns the Monday of the week containing date.
func WeekStart(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(DateLayout)
}

// WeekEnd returns the Sunday of the week containing date.
func WeekEnd(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, 6-offset).Format(DateLayout)
}

// MonthStart returns the first day of the month containing date.
func MonthStart(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).Format(DateLayout)
}

// MonthEnd returns the last day of the month containing date.
func MonthEnd(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).
		AddDate(0, 1, -1).Format(DateLayout)
}

// YearStart returns January 1st of the year containing date.
func YearStart(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location()).Format(DateLayout)
}

// YearEnd returns December 31st of the year containing date.
func YearEnd(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return time.Date(t.Year(), 12, 31, 0, 0, 0, 0, t.Location()).Format(DateLayout)
}

// LastYearStart returns January 1st of the year before the one containing
// date.
func LastYearStart(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return time.Date(t.Year()-1, 1, 1, 0, 0, 0, 0, t.Location()).Format(DateLayout)
}
