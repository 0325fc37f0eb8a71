// Package scheduler runs registered jobs on cron schedules, guarded by a
// process-wide file lock and per-category concurrency limits.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField holds the allowed values of one cron field as a bitmask.
// The widest field (minute, 0-59) fits in a uint64.
type cronField uint64

func (f cronField) has(v int) bool { return f&(1<<uint(v)) != 0 }

// CronExpr is a parsed 5-field cron expression
// (minute, hour, day-of-month, month, day-of-week).
type CronExpr struct {
	minute cronField
	hour   cronField
	dom    cronField
	month  cronField
	dow    cronField
}

// ParseCron parses a 5-field cron expression. Each field accepts *, single
// values, ranges, steps (*/N, N-M/S), and comma-separated lists.
func ParseCron(expr string) (*CronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	c := &CronExpr{}
	for i, spec := range []struct {
		name   string
		lo, hi int
		dst    *cronField
	}{
		{"minute", 0, 59, &c.minute},
		{"hour", 0, 23, &c.hour},
		{"day-of-month", 1, 31, &c.dom},
		{"month", 1, 12, &c.month},
		{"day-of-week", 0, 6, &c.dow},
	} {
		mask, err := parseField(fields[i], spec.lo, spec.hi)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", spec.name, err)
		}
		*spec.dst = mask
	}
	return c, nil
}

// Matches reports whether t satisfies the expression, minute-granular.
func (c *CronExpr) Matches(t time.Time) bool {
	return c.minute.has(t.Minute()) &&
		c.hour.has(t.Hour()) &&
		c.dom.has(t.Day()) &&
		c.month.has(int(t.Month())) &&
		c.dow.has(int(t.Weekday()))
}

func parseField(field string, lo, hi int) (cronField, error) {
	var mask cronField
	for _, part := range strings.Split(field, ",") {
		m, err := parsePart(part, lo, hi)
		if err != nil {
			return 0, err
		}
		mask |= m
	}
	return mask, nil
}

func parsePart(part string, lo, hi int) (cronField, error) {
	base, stepStr, hasStep := strings.Cut(part, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step in %q", part)
		}
		step = n
	}

	from, to := lo, hi
	switch {
	case base == "*":
	case strings.Contains(base, "-"):
		a, b, _ := strings.Cut(base, "-")
		var err error
		if from, err = strconv.Atoi(a); err != nil {
			return 0, fmt.Errorf("invalid range start %q", a)
		}
		if to, err = strconv.Atoi(b); err != nil {
			return 0, fmt.Errorf("invalid range end %q", b)
		}
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", part)
		}
		from, to = v, v
	}
	if from < lo || to > hi || from > to {
		return 0, fmt.Errorf("%q out of bounds [%d,%d]", part, lo, hi)
	}

	var mask cronField
	for v := from; v <= to; v += step {
		mask |= 1 << uint(v)
	}
	return mask, nil
}
