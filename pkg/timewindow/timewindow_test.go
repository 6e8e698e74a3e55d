package timewindow

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := date(2026, time.March, 10)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint", at(9), at(10), at(11), at(12), false},
		{"touching endpoints do not overlap", at(9), at(10), at(10), at(11), false},
		{"partial overlap", at(9), at(11), at(10), at(12), true},
		{"contained", at(9), at(12), at(10), at(11), true},
		{"identical", at(9), at(10), at(9), at(10), true},
		{"reversed order", at(11), at(12), at(9), at(10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlapsMinutes(t *testing.T) {
	if OverlapsMinutes(540, 600, 600, 660) {
		t.Error("touching minute windows must not overlap")
	}
	if !OverlapsMinutes(540, 630, 600, 660) {
		t.Error("expected overlap for 09:00-10:30 vs 10:00-11:00")
	}
}

func TestDurationMinutes(t *testing.T) {
	start := date(2026, time.March, 10).Add(9 * time.Hour)
	got, err := DurationMinutes(start, start.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 90 {
		t.Errorf("expected 90 minutes, got %d", got)
	}
}

func TestDurationMinutes_EndNotAfterStart(t *testing.T) {
	start := date(2026, time.March, 10)
	if _, err := DurationMinutes(start, start); err == nil {
		t.Error("expected error for end == start")
	}
	if _, err := DurationMinutes(start, start.Add(-time.Minute)); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9:30", 0, true},
		{"0930", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(570); got != "09:30" {
		t.Errorf("expected 09:30, got %s", got)
	}
	if got := FormatClock(0); got != "00:00" {
		t.Errorf("expected 00:00, got %s", got)
	}
}

func TestWeekday(t *testing.T) {
	// 2026-03-08 is a Sunday.
	if got := Weekday(date(2026, time.March, 8)); got != 0 {
		t.Errorf("expected Sunday=0, got %d", got)
	}
	if got := Weekday(date(2026, time.March, 9)); got != 1 {
		t.Errorf("expected Monday=1, got %d", got)
	}
}

func TestAddOccurrence_Daily(t *testing.T) {
	start := date(2026, time.March, 10)
	if got := AddOccurrence(start, PatternDaily, 0, 3); !got.Equal(date(2026, time.March, 13)) {
		t.Errorf("unexpected date %s", got)
	}
}

func TestAddOccurrence_Weekly(t *testing.T) {
	start := date(2026, time.March, 10)
	if got := AddOccurrence(start, PatternWeekly, 0, 2); !got.Equal(date(2026, time.March, 24)) {
		t.Errorf("unexpected date %s", got)
	}
}

func TestAddOccurrence_BiWeekly(t *testing.T) {
	start := date(2026, time.March, 10)
	if got := AddOccurrence(start, PatternBiWeekly, 0, 1); !got.Equal(date(2026, time.March, 24)) {
		t.Errorf("unexpected date %s", got)
	}
}

func TestAddOccurrence_MonthlyClampsToMonthLength(t *testing.T) {
	start := date(2026, time.January, 31)
	// February 2026 has 28 days.
	if got := AddOccurrence(start, PatternMonthly, 0, 1); !got.Equal(date(2026, time.February, 28)) {
		t.Errorf("expected clamp to Feb 28, got %s", got)
	}
	// March has 31 again; the day-of-month is taken from the series start.
	if got := AddOccurrence(start, PatternMonthly, 0, 2); !got.Equal(date(2026, time.March, 31)) {
		t.Errorf("expected Mar 31, got %s", got)
	}
}

func TestAddOccurrence_MonthlyLeapYear(t *testing.T) {
	start := date(2028, time.January, 30)
	if got := AddOccurrence(start, PatternMonthly, 0, 1); !got.Equal(date(2028, time.February, 29)) {
		t.Errorf("expected Feb 29 in leap year, got %s", got)
	}
}

func TestAddOccurrence_Custom(t *testing.T) {
	start := date(2026, time.March, 10)
	if got := AddOccurrence(start, PatternCustom, 3, 4); !got.Equal(date(2026, time.March, 22)) {
		t.Errorf("unexpected date %s", got)
	}
	// interval below 1 falls back to 1
	if got := AddOccurrence(start, PatternCustom, 0, 2); !got.Equal(date(2026, time.March, 12)) {
		t.Errorf("unexpected date %s", got)
	}
}

func TestAddOccurrence_IndexZeroIsStart(t *testing.T) {
	start := date(2026, time.March, 10)
	for _, p := range []Pattern{PatternDaily, PatternWeekly, PatternBiWeekly, PatternMonthly, PatternCustom} {
		if got := AddOccurrence(start, p, 2, 0); !got.Equal(start) {
			t.Errorf("%s: index 0 should return start, got %s", p, got)
		}
	}
}

func TestParsePattern(t *testing.T) {
	for _, s := range []string{"DAILY", "WEEKLY", "BI_WEEKLY", "MONTHLY", "CUSTOM"} {
		if _, err := ParsePattern(s); err != nil {
			t.Errorf("ParsePattern(%q): unexpected error: %v", s, err)
		}
	}
	if _, err := ParsePattern("YEARLY"); err == nil {
		t.Error("expected error for unknown pattern")
	}
}
