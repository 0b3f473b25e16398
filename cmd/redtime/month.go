package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/redmine"
	"github.com/nhle/redtime/internal/schedule"
	"github.com/nhle/redtime/internal/theme"
)

func newMonthCmd(opts *globalOptions) *cobra.Command {
	var showEmpty bool

	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Summarize logged hours per day for a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			month, err := parseMonthArg(arg, time.Now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.run(cmd.Context(), "Loading "+month.String(), func(ctx context.Context) error {
				_, err := a.rm.DownloadEntriesFromMonth(ctx, month)
				return err
			})
			if err != nil {
				return err
			}

			return printMonth(a.out, a.rm, month, a.week, showEmpty)
		},
	}

	cmd.Flags().BoolVar(&showEmpty, "all", false, "also list days with nothing expected and nothing logged")
	return cmd
}

func printMonth(w io.Writer, rm *redmine.Redmine, month model.Month, week schedule.Weekly, showEmpty bool) error {
	if _, ok := rm.EntriesForMonth(month); !ok {
		return fmt.Errorf("%s is not loaded", month)
	}

	fmt.Fprintln(w, theme.HeaderStyle.Render(month.Start().Format("January 2006")))

	t := newTable("Day", "Logged", "Expected", "Left")
	var totalSpent float64
	for d := month.Start(); month.Contains(d); d = d.AddDate(0, 0, 1) {
		spent, _ := rm.SpentOn(d)
		expected := week.ExpectedHours(d)
		totalSpent += spent
		if !showEmpty && spent == 0 && expected == 0 {
			continue
		}

		pending, _ := rm.PendingHours(d, week.ExpectedHours)
		left := ""
		if pending > 0 {
			left = redmine.FormatHours(pending)
		}
		t.Row(
			d.Format("Mon 02"),
			theme.HoursStyle(spent, expected).Render(redmine.FormatHours(spent)),
			redmine.FormatHours(expected),
			left,
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, totalLine("Month", totalSpent, week.ExpectedInMonth(month)))
	return nil
}
