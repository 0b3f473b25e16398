package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
	"github.com/nhle/redtime/internal/theme"
)

func newDayCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "day [YYYY-MM-DD|today|yesterday]",
		Short: "Show the time entries of one day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			day, err := parseDayArg(arg, time.Now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			err = a.run(ctx, "Loading "+day.Format(model.DateLayout), func(ctx context.Context) error {
				_, err := a.rm.DownloadEntriesFromMonth(ctx, model.MonthOf(day))
				return err
			})
			if err != nil {
				return err
			}

			return printDay(a.out, a.rm, day, a.week.ExpectedHours)
		},
	}
}

func printDay(w io.Writer, rm *redmine.Redmine, day time.Time, expected redmine.ExpectedHours) error {
	entries, ok := rm.EntriesForDate(day)
	if !ok {
		return fmt.Errorf("%s is not loaded", day.Format(model.DateLayout))
	}

	fmt.Fprintln(w, theme.HeaderStyle.Render(day.Format("Monday 2006-01-02")))

	if len(entries) == 0 {
		fmt.Fprintln(w, helpLine("No time logged."))
	} else {
		t := newTable("Entry", "Issue", "Hours", "Comment")
		for _, e := range entries {
			t.Row(entryRef(e), e.Issue().String(), redmine.FormatHours(e.Spent()), truncate(e.Comment(), 48))
		}
		fmt.Fprintln(w, t.Render())
	}

	spent, _ := rm.SpentOn(day)
	pending, _ := rm.PendingHours(day, expected)
	line := totalLine("Logged", spent, expected(day))
	if pending > 0 {
		line += helpLine(fmt.Sprintf("  %s left", redmine.FormatHours(pending)))
	}
	fmt.Fprintln(w, line)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
