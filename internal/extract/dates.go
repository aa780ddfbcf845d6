package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date captured from text.
// Fields hold the raw numbers so callers can range-check before building a time.Time.
type Date struct {
	Raw   string
	Year  int
	Month int
	Day   int
}

// Time returns the date at UTC midnight. Impossible dates (Feb 30) are an error.
func (d Date) Time() (time.Time, error) {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return time.Time{}, fmt.Errorf("date %q out of range", d.Raw)
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	if t.Day() != d.Day || int(t.Month()) != d.Month {
		return time.Time{}, fmt.Errorf("date %q does not exist", d.Raw)
	}
	return t, nil
}

// ParseDate reads m/d/yyyy, m-d-yyyy or yyyy-m-d
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	sep := "/"
	if !strings.Contains(s, "/") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("unrecognized date %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("unrecognized date %q: %w", s, err)
		}
		nums[i] = n
	}
	if len(parts[0]) == 4 {
		return Date{Raw: s, Year: nums[0], Month: nums[1], Day: nums[2]}, nil
	}
	return Date{Raw: s, Month: nums[0], Day: nums[1], Year: nums[2]}, nil
}

// FindDates collects matches of every pattern, dropping duplicates.
// Output is sorted so repeated runs are identical.
func FindDates(text string, patterns []*regexp.Regexp) []string {
	seen := make(map[string]struct{})
	var dates []string
	for _, re := range patterns {
		for _, m := range re.FindAllString(text, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			dates = append(dates, m)
		}
	}
	sort.Strings(dates)
	return dates
}

// Span parses each date and returns max - min. ok is false when fewer
// than two dates parse; err reports the first unparseable date.
func Span(raw []string) (span time.Duration, ok bool, err error) {
	var times []time.Time
	for _, s := range raw {
		d, perr := ParseDate(s)
		if perr == nil {
			var t time.Time
			t, perr = d.Time()
			if perr == nil {
				times = append(times, t)
				continue
			}
		}
		if err == nil {
			err = perr
		}
	}
	if len(times) < 2 {
		return 0, false, err
	}
	lo, hi := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return hi.Sub(lo), true, err
}

// Days converts a day count to a duration
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
