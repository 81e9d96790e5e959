package urgency

import "time"

// civilDate truncates t to its calendar date. The result is midnight UTC so
// day arithmetic is not disturbed by daylight saving transitions.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AddBusinessDays returns the calendar date n business days after the date of
// start. Business days are Monday to Friday; no holidays are observed. A
// weekend start counts from the preceding Friday. n <= 0 returns the date of
// start unchanged.
func AddBusinessDays(start time.Time, n int) time.Time {
	d := civilDate(start)
	if n <= 0 {
		return d
	}

	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, -2)
	}

	d = d.AddDate(0, 0, (n/5)*7)
	for rest := n % 5; rest > 0; {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			rest--
		}
	}
	return d
}

// BusinessDaysBetween counts the business days in (from, to]. The count is
// negative when to falls before from, and at most -1 even when only weekend
// days separate them.
func BusinessDaysBetween(from, to time.Time) int {
	a, b := civilDate(from), civilDate(to)
	switch {
	case a.Equal(b):
		return 0
	case b.Before(a):
		return min(-countBusinessDays(b, a), -1)
	default:
		return countBusinessDays(a, b)
	}
}

// countBusinessDays counts business days in (a, b] for civil dates a < b.
func countBusinessDays(a, b time.Time) int {
	days := int((b.Unix() - a.Unix()) / 86400)
	weeks := days / 7
	count := weeks * 5

	d := a.AddDate(0, 0, weeks*7)
	for i := 0; i < days%7; i++ {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			count++
		}
	}
	return count
}
