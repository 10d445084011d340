package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/vakit/internal/audio"
	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

const maxDays = 31

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	nextStyle     = cellStyle.Foreground(lipgloss.Color("10")).Bold(true)
	disabledStyle = cellStyle.Faint(true)
)

func newTimesCmd(c *cli) *cobra.Command {
	var (
		lat, lng float64
		days     int
		date     string
	)
	cmd := &cobra.Command{
		Use:   "times",
		Short: "Print prayer times for the configured or given location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 || days > maxDays {
				return fmt.Errorf("--days must be between 1 and %d", maxDays)
			}

			a, err := c.openApp(cmd.Context(), audio.Unavailable{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			s := a.Settings.Settings()
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				loc, err := model.NewLocation(lat, lng, "")
				if err != nil {
					return err
				}
				s.Location = loc
			}
			calc, err := calculator.FromSettings(s, a.CalculatorOptions())
			if err != nil {
				return err
			}

			now := a.Now().In(calc.Timezone())
			start := now
			if date != "" {
				if start, err = time.ParseInLocation(time.DateOnly, date, calc.Timezone()); err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
			}

			list, err := calc.CalculateRange(start, days)
			if err != nil {
				return err
			}
			next, err := calc.NextPrayer(now)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, renderTimes(calc.Location(), calc.TimezoneName(), calc.InRegion(), list, s.EnabledPrayers, next))
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "latitude, defaults to the stored location")
	f.Float64Var(&lng, "lng", 0, "longitude, defaults to the stored location")
	f.IntVar(&days, "days", 1, "number of days to print")
	f.StringVar(&date, "date", "", "first day as YYYY-MM-DD, defaults to today")
	return cmd
}

// renderTimes draws one row per day. The upcoming prayer is highlighted and
// prayers without an adhan are dimmed.
func renderTimes(loc model.Location, tz string, regional bool, days []model.DayTimes, enabled model.PrayerSet, next model.PrayerTime) string {
	headers := []string{"Tarih", "Hicri"}
	for _, p := range model.AllPrayers {
		headers = append(headers, p.DisplayName())
	}

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		row := []string{d.Date.Format("02.01.2006"), model.HijriDate(d.Date)}
		for _, pt := range d.All() {
			row = append(row, pt.Clock())
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col < 2 || row < 0 || row >= len(days) {
				return cellStyle
			}
			pt := days[row].PrayerTime(model.AllPrayers[col-2])
			switch {
			case pt.At.Equal(next.At) && pt.Name == next.Name:
				return nextStyle
			case pt.Name != model.Sunrise && !enabled.Has(pt.Name):
				return disabledStyle
			}
			return cellStyle
		})

	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s", loc, tz)
	if regional {
		b.WriteString(" · regional offsets")
	}
	b.WriteString("\n")
	b.WriteString(t.Render())
	return b.String()
}
