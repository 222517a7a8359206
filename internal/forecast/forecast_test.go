package forecast

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescast/internal/model"
)

func week(y int, m time.Month, d int, sales float64) model.ForecastPoint {
	return model.ForecastPoint{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Sales: sales}
}

var points = []model.ForecastPoint{
	week(2018, 8, 20, 100),
	week(2018, 8, 27, 300),
	week(2018, 9, 3, 200),
	week(2018, 9, 10, 50),
}

func TestSummarize(t *testing.T) {
	s := Summarize(points)
	assert.Equal(t, 4, s.Weeks)
	assert.InDelta(t, 650.0, s.Total, 1e-9)
	assert.InDelta(t, 162.5, s.Mean, 1e-9)
	assert.Equal(t, 300.0, s.Max)
	assert.Equal(t, 50.0, s.Min)
	assert.Equal(t, points[1].Date, s.Peak)
	assert.Equal(t, points[3].Date, s.Trough)
	assert.Equal(t, points[0].Date, s.First)
	assert.Equal(t, points[3].Date, s.Last)
	assert.Zero(t, Summarize(nil).Weeks)
}

func TestMonthlyTotals(t *testing.T) {
	m := MonthlyTotals(points)
	keys := SortedMonthKeys(m)
	require.Len(t, keys, 2)
	assert.Equal(t, time.August, keys[0].Month())
	assert.InDelta(t, 400.0, m[keys[0]], 1e-9)
	assert.InDelta(t, 250.0, m[keys[1]], 1e-9)
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 171,234.50", FormatBRL(171234.5))
	assert.Equal(t, "R$ 0.00", FormatBRL(0))
}

func TestRenderChartScalesToWidth(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, points, 10))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, 10, strings.Count(lines[1], "█"))
	assert.Equal(t, 3, strings.Count(lines[0], "█"))
}

type fakeFetcher struct {
	weeks int
	err   error
}

func (f *fakeFetcher) GetForecast(ctx context.Context, weeks int) ([]model.ForecastPoint, error) {
	f.weeks = weeks
	return points, f.err
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeFetcher{}
	require.NoError(t, Report(context.Background(), &buf, f, 4, 20))
	assert.Equal(t, 4, f.weeks)
	out := buf.String()
	assert.Contains(t, out, "Horizon: 4 weeks (2018-08-20 to 2018-09-10)")
	assert.Contains(t, out, "2018-09-03")
	assert.Contains(t, out, "R$ 300.00")
	assert.Contains(t, out, "2018-08  R$ 400.00")

	boom := errors.New("boom")
	assert.ErrorIs(t, Report(context.Background(), &buf, &fakeFetcher{err: boom}, 4, 20), boom)
}
