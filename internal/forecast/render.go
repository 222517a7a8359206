package forecast

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"salescast/internal/model"
)

// FormatBRL renders a sales value in Brazilian reais.
func FormatBRL(v float64) string {
	return "R$ " + humanize.FormatFloat("#,###.##", v)
}

// RenderTable writes one line per week.
func RenderTable(w io.Writer, points []model.ForecastPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Week\tSales\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Date.Format(time.DateOnly), FormatBRL(p.Sales))
	}
	return tw.Flush()
}

// RenderChart draws a horizontal bar per week scaled to width columns.
func RenderChart(w io.Writer, points []model.ForecastPoint, width int) error {
	if len(points) == 0 {
		return nil
	}
	if width < 1 {
		width = 40
	}
	s := Summarize(points)
	for _, p := range points {
		n := 0
		if s.Max > 0 && p.Sales > 0 {
			n = int(math.Round(p.Sales / s.Max * float64(width)))
		}
		if _, err := fmt.Fprintf(w, "%s │%s %s\n", p.Date.Format("01-02"), strings.Repeat("█", n), humanize.SIWithDigits(p.Sales, 1, "")); err != nil {
			return err
		}
	}
	return nil
}

// RenderSummary writes the horizon totals and the monthly breakdown.
func RenderSummary(w io.Writer, points []model.ForecastPoint) error {
	s := Summarize(points)
	if s.Weeks == 0 {
		_, err := fmt.Fprintln(w, "No forecast data.")
		return err
	}
	fmt.Fprintf(w, "Horizon: %d weeks (%s to %s)\n", s.Weeks, s.First.Format(time.DateOnly), s.Last.Format(time.DateOnly))
	fmt.Fprintf(w, "Total: %s  Mean: %s\n", FormatBRL(s.Total), FormatBRL(s.Mean))
	fmt.Fprintf(w, "Peak: %s on %s  Trough: %s on %s\n", FormatBRL(s.Max), s.Peak.Format(time.DateOnly), FormatBRL(s.Min), s.Trough.Format(time.DateOnly))
	months := MonthlyTotals(points)
	for _, k := range SortedMonthKeys(months) {
		if _, err := fmt.Fprintf(w, "  %s  %s\n", k.Format("2006-01"), FormatBRL(months[k])); err != nil {
			return err
		}
	}
	return nil
}

// Report fetches weeks of forecast from f and renders summary, chart and table.
func Report(ctx context.Context, w io.Writer, f Fetcher, weeks, chartWidth int) error {
	points, err := f.GetForecast(ctx, weeks)
	if err != nil {
		return err
	}
	if err := RenderSummary(w, points); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := RenderChart(w, points, chartWidth); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return RenderTable(w, points)
}
