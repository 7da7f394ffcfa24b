package domain

import (
	"strconv"
	"strings"
	"time"
)

// Elapsed returns the tracked time in milliseconds as of now.
func Elapsed(t Tracker, now time.Time) int64 {
	switch tm := t.Timer.(type) {
	case Active:
		return now.UnixMilli() - tm.Start*1000
	case Finished:
		return (tm.End - tm.Start) * 1000
	default:
		return 0
	}
}

// FormatDuration renders milliseconds as e.g. "1h 5m 3s". Units are broken
// down calendar style (days roll into months over a 400 year cycle, months
// into years); zero units are skipped except seconds.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	months := days * 4800 / 146097
	days -= (months*146097 + 4799) / 4800
	years := months / 12
	months %= 12

	var b strings.Builder
	for _, u := range []struct {
		n      int64
		suffix string
	}{
		{years, "y"},
		{months, "m"},
		{days, "d"},
		{hours % 24, "h"},
		{mins % 60, "m"},
	} {
		if u.n > 0 {
			b.WriteString(strconv.FormatInt(u.n, 10))
			b.WriteString(u.suffix)
			b.WriteByte(' ')
		}
	}
	b.WriteString(strconv.FormatInt(secs%60, 10))
	b.WriteByte('s')
	return b.String()
}
