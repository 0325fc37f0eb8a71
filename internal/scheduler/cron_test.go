package scheduler

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"*/15 * * * *", false},
		{"0 8 * * *", false},
		{"30 4 1,15 * *", false},
		{"0 0 1 1 0", false},
		{"0-30/5 9-17 * * 1-5", false},
		{"", true},
		{"* * *", true},
		{"60 * * * *", true},
		{"* 25 * * *", true},
		{"* * 32 * *", true},
		{"* * * 13 *", true},
		{"* * * * 7", true},
		{"*/0 * * * *", true},
		{"abc * * * *", true},
		{"5-2 * * * *", true},
	}
	for _, tc := range tests {
		_, err := ParseCron(tc.expr)
		if tc.wantErr && err == nil {
			t.Errorf("ParseCron(%q) accepted an invalid expression", tc.expr)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ParseCron(%q) returned error: %v", tc.expr, err)
		}
	}
}

func TestCronMatches(t *testing.T) {
	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{"wildcard matches anything", "* * * * *",
			time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC), true},
		{"step matches multiple", "*/5 * * * *",
			time.Date(2026, 2, 15, 10, 15, 0, 0, time.UTC), true},
		{"step skips off-minute", "*/5 * * * *",
			time.Date(2026, 2, 15, 10, 13, 0, 0, time.UTC), false},
		{"range with step on a weekday", "0-30/5 9-17 * * 1-5",
			time.Date(2026, 2, 16, 10, 15, 0, 0, time.UTC), true}, // Monday
		{"range with step on a weekend", "0-30/5 9-17 * * 1-5",
			time.Date(2026, 2, 14, 10, 15, 0, 0, time.UTC), false}, // Saturday
		{"list matches first day", "30 4 1,15 * *",
			time.Date(2026, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"list matches second day", "30 4 1,15 * *",
			time.Date(2026, 3, 15, 4, 30, 0, 0, time.UTC), true},
		{"list skips other days", "30 4 1,15 * *",
			time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC), false},
		{"morning digest hour", "0 8 * * *",
			time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), true},
		{"morning digest off-hour", "0 8 * * *",
			time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseCron(tc.expr)
			if err != nil {
				t.Fatalf("ParseCron(%q) failed: %v", tc.expr, err)
			}
			if got := c.Matches(tc.at); got != tc.want {
				t.Errorf("Matches(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}
