package pkg

import "time"

const ISODateLayout = "2006-01-02"

// ValidISODate reports whether s is a calendar-valid YYYY-MM-DD date.
func ValidISODate(s string) bool {
	_, err := time.Parse(ISODateLayout, s)
	return err == nil
}

func FormatISODate(t time.Time) string {
	return t.Format(ISODateLayout)
}

// AddDaysISO shifts an ISO date by n calendar days. The input must be valid.
func AddDaysISO(date string, n int) string {
	t, err := time.Parse(ISODateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(ISODateLayout)
}

// DaysBetweenISO returns the inclusive day count of [from, to].
func DaysBetweenISO(from, to string) int {
	fromT, errFrom := time.Parse(ISODateLayout, from)
	toT, errTo := time.Parse(ISODateLayout, to)
	if errFrom != nil || errTo != nil {
		return 0
	}
	return int(toT.Sub(fromT).Hours()/24) + 1
}

func NormalizeWindowDays(days, defaultDays, minDays, maxDays int) int {
	if days <= 0 {
		days = defaultDays
	}
	if days < minDays {
		days = minDays
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

// CalendarWindow resolves a [from, to] span of the given length, anchored at
// the later of maxLogDate and now. An empty maxLogDate anchors at now.
func CalendarWindow(maxLogDate string, days int, now time.Time) (from, to string) {
	anchor := FormatISODate(now)
	if ValidISODate(maxLogDate) && maxLogDate > anchor {
		anchor = maxLogDate
	}
	if days < 1 {
		days = 1
	}
	return AddDaysISO(anchor, -(days - 1)), anchor
}
