package schedule

import (
	"testing"
	"time"

	"github.com/nhle/redtime/internal/model"
)

func TestDefault(t *testing.T) {
	monday := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if got := Default.ExpectedHours(monday); got != 8 {
		t.Errorf("Monday = %v, want 8", got)
	}
	if got := Default.ExpectedHours(monday.AddDate(0, 0, 5)); got != 0 {
		t.Errorf("Saturday = %v, want 0", got)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		hours   map[string]float64
		day     time.Weekday
		want    float64
		wantErr bool
	}{
		{name: "empty uses default", hours: nil, day: time.Tuesday, want: 8},
		{name: "full names", hours: map[string]float64{"friday": 4}, day: time.Friday, want: 4},
		{name: "unlisted day is zero", hours: map[string]float64{"friday": 4}, day: time.Monday, want: 0},
		{name: "short and mixed case", hours: map[string]float64{" Wed ": 6.5}, day: time.Wednesday, want: 6.5},
		{name: "unknown day", hours: map[string]float64{"funday": 1}, wantErr: true},
		{name: "negative hours", hours: map[string]float64{"monday": -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := FromConfig(tt.hours)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig() unexpected error: %v", err)
			}
			if got := w[tt.day]; got != tt.want {
				t.Errorf("%s = %v, want %v", tt.day, got, tt.want)
			}
		})
	}
}

func TestExpectedInMonth(t *testing.T) {
	// March 2026 has 22 weekdays.
	m := model.Month{Year: 2026, Month: time.March}
	if got := Default.ExpectedInMonth(m); got != 176 {
		t.Errorf("ExpectedInMonth(%s) = %v, want 176", m, got)
	}
}
