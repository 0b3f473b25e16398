package redmine

import (
	"fmt"
	"math"
)

// RoundHours rounds h to two decimals, the precision Redmine stores.
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// FormatHours renders hours as "2h", "1h30" or "0h15". Minutes are rounded
// to the nearest whole minute.
func FormatHours(h float64) string {
	sign := ""
	if h < 0 {
		sign = "-"
		h = -h
	}
	total := int(math.Round(h * 60))
	hours, minutes := total/60, total%60
	if minutes == 0 {
		return fmt.Sprintf("%s%dh", sign, hours)
	}
	return fmt.Sprintf("%s%dh%02d", sign, hours, minutes)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sameHours(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return RoundHours(*a) == RoundHours(*b)
}
