// Package interval implements the openGauss/PostgreSQL INTERVAL literal
// format from spec.md section 6: "N year[s] M mon[s] D day[s] [±]HH:MM:SS[.frac]"
// (each token optional, space-separated), backed by the (months, days,
// ticks) value type spec.md section 9 calls for in place of the obsolete
// OpenGaussTimeSpan comparator hierarchy.
package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Ticks are 100-nanosecond units, matching the teacher ecosystem's .NET
// heritage (TimeSpan.Ticks) rather than PostgreSQL's native microseconds.
const (
	TicksPerSecond = 10_000_000
	TicksPerMinute = 60 * TicksPerSecond
	TicksPerHour   = 60 * TicksPerMinute
	TicksPerDay    = 24 * TicksPerHour

	// DaysPerMonth and HoursPerDay are the fixed conversion factors spec.md
	// section 6 specifies for total-X conversions: "30 days per month, 24
	// hours per day".
	DaysPerMonth = 30
)

// Interval is the (months, days, ticks) value described in spec.md section
// 9 ("Obsolete type OpenGaussTimeSpan"): retained only as a literal
// parser/formatter plus this plain value type, with no comparator
// interface hierarchy.
type Interval struct {
	Months int32
	Days   int32
	Ticks  int64
}

// TotalTicks expands months and days into ticks using the fixed 30-day
// month / 24-hour day conversion and returns the fully-expanded duration.
func TotalTicks(i Interval) int64 {
	return int64(i.Months)*DaysPerMonth*TicksPerDay + int64(i.Days)*TicksPerDay + i.Ticks
}

// Canonicalize folds Months into Days (at 30 days/month) and normalizes
// Ticks to within one day, satisfying spec.md section 8's invariant:
// 0 <= |Ticks| < TicksPerDay and Months == 0.
func Canonicalize(i Interval) Interval {
	total := TotalTicks(i)
	days := total / TicksPerDay
	ticks := total % TicksPerDay
	return Interval{Days: int32(days), Ticks: ticks}
}

// Justify redistributes overflowing Ticks into Days and overflowing Days
// into Months (PostgreSQL's justify_interval behavior). Justify is
// idempotent: applying it to an already-justified value is a no-op
// (spec.md section 8).
func Justify(i Interval) Interval {
	ticks := i.Ticks
	days := i.Days

	extraDays := ticks / TicksPerDay
	ticks -= extraDays * TicksPerDay
	days += int32(extraDays)

	extraMonths := days / DaysPerMonth
	days -= extraMonths * DaysPerMonth
	months := i.Months + extraMonths

	return Interval{Months: months, Days: days, Ticks: ticks}
}

// Unjustify is Justify's inverse direction of travel: it fully expands
// Months and Days back into a pure-Ticks value. Per spec.md section 8,
// Unjustify(Justify(x)).Ticks == TotalTicks(x) for all x, since Justify
// only redistributes and never changes the total duration.
func Unjustify(i Interval) Interval {
	return Interval{Ticks: TotalTicks(i)}
}

// String renders i in the canonical "N year[s] M mon[s] D day[s]
// [-]HH:MM:SS[.ffffff]" form, omitting zero leading components.
func (i Interval) String() string {
	var b strings.Builder

	writeUnit := func(n int32, singular, plural string) {
		if n == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		unit := singular
		if n != 1 && n != -1 {
			unit = plural
		}
		fmt.Fprintf(&b, "%d %s", n, unit)
	}

	years := i.Months / 12
	months := i.Months % 12
	writeUnit(years, "year", "years")
	writeUnit(months, "mon", "mons")
	writeUnit(i.Days, "day", "days")

	ticks := i.Ticks
	if ticks != 0 || b.Len() == 0 {
		sign := ""
		if ticks < 0 {
			sign = "-"
			ticks = -ticks
		}
		hours := ticks / TicksPerHour
		ticks %= TicksPerHour
		minutes := ticks / TicksPerMinute
		ticks %= TicksPerMinute
		seconds := ticks / TicksPerSecond
		frac := ticks % TicksPerSecond

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s%02d:%02d:%02d", sign, hours, minutes, seconds)
		if frac != 0 {
			fracStr := fmt.Sprintf("%07d", frac)
			fracStr = strings.TrimRight(fracStr, "0")
			fmt.Fprintf(&b, ".%s", fracStr)
		}
	}

	return b.String()
}

// Parse accepts the format String produces: optional "N year[s]", "M
// mon[s]"/"month[s]", "D day[s]" tokens, space-separated, followed by an
// optional signed HH:MM:SS[.frac] clock component.
func Parse(s string) (Interval, error) {
	var out Interval
	fields := strings.Fields(s)

	i := 0
	for i < len(fields) {
		tok := fields[i]
		if looksLikeClock(tok) {
			break
		}
		if i+1 >= len(fields) {
			return Interval{}, fmt.Errorf("interval: dangling unit token %q", tok)
		}
		n, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return Interval{}, fmt.Errorf("interval: invalid quantity %q: %w", tok, err)
		}
		unit := strings.ToLower(fields[i+1])
		switch unit {
		case "year", "years":
			out.Months += int32(n) * 12
		case "mon", "mons", "month", "months":
			out.Months += int32(n)
		case "day", "days":
			out.Days += int32(n)
		default:
			return Interval{}, fmt.Errorf("interval: unknown unit %q", fields[i+1])
		}
		i += 2
	}

	if i < len(fields) {
		ticks, err := parseClock(fields[i])
		if err != nil {
			return Interval{}, err
		}
		out.Ticks = ticks
		i++
	}

	if i != len(fields) {
		return Interval{}, fmt.Errorf("interval: unexpected trailing input %q", strings.Join(fields[i:], " "))
	}

	return out, nil
}

func looksLikeClock(tok string) bool {
	t := strings.TrimPrefix(strings.TrimPrefix(tok, "-"), "+")
	return strings.Count(t, ":") >= 2
}

func parseClock(tok string) (int64, error) {
	sign := int64(1)
	if strings.HasPrefix(tok, "-") {
		sign = -1
		tok = tok[1:]
	} else if strings.HasPrefix(tok, "+") {
		tok = tok[1:]
	}

	parts := strings.SplitN(tok, ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("interval: invalid clock component %q", tok)
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("interval: invalid hours in %q: %w", tok, err)
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("interval: invalid minutes in %q: %w", tok, err)
	}

	secStr := parts[2]
	var seconds int64
	var fracTicks int64
	if dot := strings.IndexByte(secStr, '.'); dot >= 0 {
		seconds, err = strconv.ParseInt(secStr[:dot], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("interval: invalid seconds in %q: %w", tok, err)
		}
		fracStr := secStr[dot+1:]
		for len(fracStr) < 7 {
			fracStr += "0"
		}
		fracStr = fracStr[:7]
		fracTicks, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("interval: invalid fractional seconds in %q: %w", tok, err)
		}
	} else {
		seconds, err = strconv.ParseInt(secStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("interval: invalid seconds in %q: %w", tok, err)
		}
	}

	total := hours*TicksPerHour + minutes*TicksPerMinute + seconds*TicksPerSecond + fracTicks
	return sign * total, nil
}
