package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
	"github.com/nhle/redtime/internal/theme"
)

func errorLine(s string) string   { return theme.ErrorStyle.Render(s) }
func helpLine(s string) string    { return theme.HelpStyle.Render(s) }
func successLine(s string) string { return theme.SuccessStyle.Render(s) }

// newTable returns a bordered table with styled header cells.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.TableHeaderStyle
			}
			return theme.TableCellStyle
		})
}

// parseHours accepts decimal hours ("1.5") or the FormatHours notation
// ("1h30", "2h", "0h15").
func parseHours(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("hours are required")
	}

	sign := 1.0
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	h, m, found := strings.Cut(s, "h")
	if !found {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hours %q: use 1.5 or 1h30", s)
		}
		return sign * v, nil
	}

	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid hours %q: use 1.5 or 1h30", s)
	}
	minutes := 0
	if m != "" {
		minutes, err = strconv.Atoi(m)
		if err != nil || minutes < 0 || minutes >= 60 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
	}
	return sign * (float64(hours) + float64(minutes)/60), nil
}

// parseID parses a positive Redmine id, with or without a leading '#'.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseDayArg parses YYYY-MM-DD, "today" or "yesterday"; empty means today.
func parseDayArg(s string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return model.Day(now), nil
	case "yesterday":
		return model.Day(now).AddDate(0, 0, -1), nil
	}
	return model.ParseDay(s)
}

// parseMonthArg parses YYYY-MM; empty means the current month.
func parseMonthArg(s string, now time.Time) (model.Month, error) {
	if strings.TrimSpace(s) == "" {
		return model.MonthOf(now), nil
	}
	return model.ParseMonth(s)
}

func formatEstimated(issue *redmine.Issue) string {
	if h, ok := issue.Estimated(); ok {
		return redmine.FormatHours(h)
	}
	return "-"
}

func formatRealization(percent int) string {
	return theme.RealizationStyle(percent).Render(fmt.Sprintf("%d%%", percent))
}

func entryRef(e *redmine.TimeEntry) string {
	if id, ok := e.ID(); ok {
		return fmt.Sprintf("#%d", id)
	}
	if e.CreatedWithoutID() {
		return theme.DraftStyle.Render("sent")
	}
	return theme.DraftStyle.Render("draft")
}

// totalLine renders "<label> 6h / 8h" colored by completion.
func totalLine(label string, spent, expected float64) string {
	value := fmt.Sprintf("%s / %s", redmine.FormatHours(spent), redmine.FormatHours(expected))
	return fmt.Sprintf("%s %s", label, theme.HoursStyle(spent, expected).Render(value))
}
