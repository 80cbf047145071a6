package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIsIdempotent(t *testing.T) {
	cases := []Interval{
		{Months: 0, Days: 0, Ticks: 0},
		{Months: 14, Days: 3, Ticks: TicksPerHour*25 + 17},
		{Months: -2, Days: -40, Ticks: -TicksPerDay * 3},
	}
	for _, in := range cases {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		assert.Equal(t, once, twice, "Canonicalize(%+v) should be a fixed point once applied", in)
		assert.Equal(t, int32(0), twice.Months, "Canonicalize must fold Months into Days")
		assert.Less(t, twice.Ticks, int64(TicksPerDay))
		assert.Greater(t, twice.Ticks, -int64(TicksPerDay))
	}
}

func TestCanonicalizePreservesTotalTicks(t *testing.T) {
	in := Interval{Months: 2, Days: 5, Ticks: TicksPerHour * 3}
	out := Canonicalize(in)
	assert.Equal(t, TotalTicks(in), TotalTicks(out))
}

func TestJustifyIsIdempotent(t *testing.T) {
	cases := []Interval{
		{Months: 1, Days: 29, Ticks: TicksPerDay - 1},
		{Months: 0, Days: 0, Ticks: TicksPerDay*35 + TicksPerHour},
		{Months: 5, Days: 2, Ticks: 0},
	}
	for _, in := range cases {
		once := Justify(in)
		twice := Justify(once)
		assert.Equal(t, once, twice, "Justify(%+v) should be a fixed point once applied", in)
	}
}

func TestJustifyRedistributesWithoutChangingTotal(t *testing.T) {
	in := Interval{Months: 0, Days: 0, Ticks: TicksPerDay*61 + TicksPerHour*2}
	out := Justify(in)
	assert.Equal(t, TotalTicks(in), TotalTicks(out))
}

func TestUnjustifyInvertsJustifysTotal(t *testing.T) {
	in := Interval{Months: 3, Days: 10, Ticks: TicksPerHour * 5}
	justified := Justify(in)
	unjustified := Unjustify(justified)
	assert.Equal(t, TotalTicks(in), unjustified.Ticks)
	assert.Equal(t, int32(0), unjustified.Months)
	assert.Equal(t, int32(0), unjustified.Days)
}

func TestParseStringRoundTrip(t *testing.T) {
	cases := []Interval{
		{Months: 14, Days: 3, Ticks: TicksPerHour*1 + TicksPerMinute*2 + TicksPerSecond*3},
		{Months: 0, Days: 0, Ticks: 0},
		{Months: -1, Days: 0, Ticks: -TicksPerHour},
	}
	for _, in := range cases {
		s := in.String()
		out, err := Parse(s)
		require.NoError(t, err, "Parse(%q)", s)
		assert.Equal(t, in, out, "round trip through %q", s)
	}
}

func TestParseRejectsUnknownUnit(t *testing.T) {
	_, err := Parse("3 fortnights")
	assert.Error(t, err)
}

func TestParseRejectsDanglingTrailingInput(t *testing.T) {
	_, err := Parse("1 day garbage")
	assert.Error(t, err)
}
