package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	now := time.Unix(5000, 250*int64(time.Millisecond))

	assert.Equal(t, int64(0), Elapsed(NewTracker(), now))
	assert.Equal(t, int64(90000), Elapsed(Tracker{Timer: Finished{Start: 1000, End: 1090}}, now))
	assert.Equal(t, int64(90000), Elapsed(Tracker{Timer: Finished{Start: 1000, End: 1090}}, time.Unix(1, 0)))
	assert.Equal(t, int64(4000250), Elapsed(Tracker{Timer: Active{Start: 1000}}, now))
}

func TestFormatDuration(t *testing.T) {
	const (
		sec  = int64(1000)
		min  = 60 * sec
		hour = 60 * min
		day  = 24 * hour
	)
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0s"},
		{999, "0s"},
		{5000, "5s"},
		{90000, "1m 30s"},
		{3661000, "1h 1m 1s"},
		{2 * hour, "2h 0s"},
		{day + 5*sec, "1d 5s"},
		{30 * day, "30d 0s"},
		{31 * day, "1m 0s"},
		{45 * day, "1m 14d 0s"},
		{365 * day, "11m 30d 0s"},
		{366 * day, "1y 0s"},
		{-5000, "0s"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.ms), "ms=%d", c.ms)
	}
}
