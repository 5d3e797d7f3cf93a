package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, time.March, 10, h, m, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: at(9, 0), End: at(9, 30)}

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{at(9, 0), at(9, 30)}, true},
		{"starts inside", Interval{at(9, 15), at(9, 45)}, true},
		{"ends inside", Interval{at(8, 45), at(9, 15)}, true},
		{"contains", Interval{at(8, 0), at(10, 0)}, true},
		{"contained", Interval{at(9, 10), at(9, 20)}, true},
		{"touches end", Interval{at(9, 30), at(10, 0)}, false},
		{"touches start", Interval{at(8, 30), at(9, 0)}, false},
		{"before", Interval{at(7, 0), at(8, 0)}, false},
		{"after", Interval{at(11, 0), at(12, 0)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestIntervalValid(t *testing.T) {
	assert.True(t, Interval{at(9, 0), at(9, 30)}.Valid())
	assert.False(t, Interval{at(9, 30), at(9, 0)}.Valid())
	assert.False(t, Interval{at(9, 0), at(9, 0)}.Valid())
	assert.False(t, Interval{End: at(9, 0)}.Valid())
}

func TestIntervalContains(t *testing.T) {
	window := Interval{at(8, 0), at(12, 0)}
	assert.True(t, window.Contains(Interval{at(8, 0), at(8, 30)}))
	assert.True(t, window.Contains(Interval{at(11, 30), at(12, 0)}))
	assert.False(t, window.Contains(Interval{at(11, 45), at(12, 15)}))
	assert.False(t, window.Contains(Interval{at(7, 45), at(8, 15)}))
}

func TestIntervalString(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	iv := Interval{
		Start: time.Date(2025, time.March, 10, 4, 0, 0, 0, loc),
		End:   time.Date(2025, time.March, 10, 4, 30, 0, 0, loc),
	}
	assert.Equal(t, "start=2025-03-10T09:00:00Z;end=2025-03-10T09:30:00Z", iv.String())
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(8, 30), tod)
	assert.Equal(t, "08:30", tod.String())

	tod, err = ParseTimeOfDay("17:00:00")
	require.NoError(t, err)
	assert.Equal(t, 17, tod.Hour())
	assert.Equal(t, 0, tod.Minute())

	_, err = ParseTimeOfDay("17:00:30")
	assert.Error(t, err)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	_, err = ParseTimeOfDay("noon")
	assert.Error(t, err)
}
