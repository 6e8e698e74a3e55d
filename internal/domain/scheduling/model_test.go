package scheduling

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusConfirmed, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusNoShow, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusCompleted, false},
	}
	for _, tt := range cases {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("SCHEDULED"); err != nil {
		t.Errorf("SCHEDULED: %v", err)
	}
	if _, err := ParseStatus("scheduled"); err == nil {
		t.Error("lowercase should be rejected")
	}
	if _, err := ParseStatus("DELETED"); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestShiftCovers(t *testing.T) {
	shift := &Shift{
		StartMinute: 540, // 09:00
		EndMinute:   1020, // 17:00
		Breaks:      []BreakWindow{{StartMinute: 720, EndMinute: 750}}, // 12:00-12:30
	}
	cases := []struct {
		start, end int
		want       bool
	}{
		{600, 645, true},   // inside, clear of break
		{500, 560, false},  // starts before shift
		{1000, 1030, false}, // runs past shift end
		{700, 730, false},  // overlaps break
		{690, 720, true},   // ends exactly at break start
		{750, 780, true},   // starts exactly at break end
	}
	for _, tt := range cases {
		if got := shift.Covers(tt.start, tt.end); got != tt.want {
			t.Errorf("Covers(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestValidateShiftWindow(t *testing.T) {
	if err := validateShiftWindow(540, 560, nil); err == nil {
		t.Error("20-minute shift should be rejected")
	}
	if err := validateShiftWindow(540, 570, nil); err != nil {
		t.Errorf("30-minute shift: %v", err)
	}
	if err := validateShiftWindow(300, 1020, nil); err != nil {
		t.Errorf("720-minute shift: %v", err)
	}
	if err := validateShiftWindow(280, 1020, nil); err == nil {
		t.Error("740-minute shift should be rejected")
	}

	// Break outside the window.
	if err := validateShiftWindow(540, 1020, []BreakWindow{{StartMinute: 500, EndMinute: 560}}); err == nil {
		t.Error("break starting before the shift should be rejected")
	}
	// Overlapping breaks.
	breaks := []BreakWindow{
		{StartMinute: 600, EndMinute: 660},
		{StartMinute: 630, EndMinute: 690},
	}
	if err := validateShiftWindow(540, 1020, breaks); err == nil {
		t.Error("overlapping breaks should be rejected")
	}
	// Six breaks.
	six := make([]BreakWindow, 6)
	for i := range six {
		six[i] = BreakWindow{StartMinute: 540 + i*60, EndMinute: 540 + i*60 + 10}
	}
	if err := validateShiftWindow(540, 1020, six); err == nil {
		t.Error("more than five breaks should be rejected")
	}
}
