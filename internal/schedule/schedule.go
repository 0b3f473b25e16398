// Package schedule answers how many hours are expected on a given day.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/redtime/internal/model"
)

// Weekly maps each weekday to its expected hours.
type Weekly [7]float64

// Default is Monday to Friday, eight hours a day.
var Default = Weekly{
	time.Monday:    8,
	time.Tuesday:   8,
	time.Wednesday: 8,
	time.Thursday:  8,
	time.Friday:    8,
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, true
		}
	}
	return 0, false
}

// FromConfig builds a schedule from weekday names to hours. Days not
// listed expect nothing; an empty map yields Default.
func FromConfig(hours map[string]float64) (Weekly, error) {
	if len(hours) == 0 {
		return Default, nil
	}
	var w Weekly
	for name, h := range hours {
		day, ok := parseWeekday(name)
		if !ok {
			return Weekly{}, fmt.Errorf("unknown weekday %q in schedule", name)
		}
		if h < 0 || h > 24 {
			return Weekly{}, fmt.Errorf("schedule hours for %s must be within [0,24], got %v", name, h)
		}
		w[day] = h
	}
	return w, nil
}

// ExpectedHours returns the hours expected on the day of t.
func (w Weekly) ExpectedHours(t time.Time) float64 {
	return w[t.Weekday()]
}

// ExpectedInMonth sums the expected hours over every day of m.
func (w Weekly) ExpectedInMonth(m model.Month) float64 {
	total := 0.0
	for d := m.Start(); m.Contains(d); d = d.AddDate(0, 0, 1) {
		total += w.ExpectedHours(d)
	}
	return total
}
