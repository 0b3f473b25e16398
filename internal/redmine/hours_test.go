package redmine

import "testing"

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "0h"},
		{2, "2h"},
		{1.5, "1h30"},
		{0.25, "0h15"},
		{7.99, "7h59"},
		{-1.5, "-1h30"},
	}
	for _, tt := range tests {
		if got := FormatHours(tt.hours); got != tt.want {
			t.Errorf("FormatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}

func TestRoundHours(t *testing.T) {
	if got := RoundHours(0.1 + 0.2); got != 0.3 {
		t.Errorf("RoundHours(0.1+0.2) = %v", got)
	}
	if got := RoundHours(1.256); got != 1.26 {
		t.Errorf("RoundHours(1.256) = %v", got)
	}
}
