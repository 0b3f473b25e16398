package model

import (
	"testing"
	"time"
)

func TestMonth(t *testing.T) {
	tests := []struct {
		in         string
		start, end string
		days       int
		prev, next string
	}{
		{in: "2026-03", start: "2026-03-01", end: "2026-03-31", days: 31, prev: "2026-02", next: "2026-04"},
		{in: "2024-02", start: "2024-02-01", end: "2024-02-29", days: 29, prev: "2024-01", next: "2024-03"},
		{in: "2025-12", start: "2025-12-01", end: "2025-12-31", days: 31, prev: "2025-11", next: "2026-01"},
		{in: "2026-01", start: "2026-01-01", end: "2026-01-31", days: 31, prev: "2025-12", next: "2026-02"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMonth(tt.in)
			if err != nil {
				t.Fatalf("ParseMonth() unexpected error: %v", err)
			}
			if got := m.Start().Format(DateLayout); got != tt.start {
				t.Errorf("Start() = %s, want %s", got, tt.start)
			}
			if got := m.End().Format(DateLayout); got != tt.end {
				t.Errorf("End() = %s, want %s", got, tt.end)
			}
			if m.Days() != tt.days {
				t.Errorf("Days() = %d, want %d", m.Days(), tt.days)
			}
			if m.Prev().String() != tt.prev || m.Next().String() != tt.next {
				t.Errorf("Prev/Next = %s/%s", m.Prev(), m.Next())
			}
			if m.String() != tt.in {
				t.Errorf("String() = %s", m)
			}
		})
	}
}

func TestMonthContainsAndDay(t *testing.T) {
	local := time.Date(2026, time.March, 31, 23, 30, 0, 0, time.FixedZone("X", 2*3600))
	d := Day(local)
	if d.Format(DateLayout) != "2026-03-31" || d.Location() != time.UTC || d.Hour() != 0 {
		t.Errorf("Day() = %v", d)
	}

	m := MonthOf(d)
	if !m.Contains(d) || m.Contains(d.AddDate(0, 0, 1)) {
		t.Error("Contains() boundary wrong")
	}

	if _, err := ParseDay("2026-13-01"); err == nil {
		t.Error("ParseDay() accepted an invalid date")
	}
	if _, err := ParseMonth("March"); err == nil {
		t.Error("ParseMonth() accepted an invalid month")
	}
}
