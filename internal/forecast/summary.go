package forecast

import (
	"context"
	"sort"
	"time"

	"salescast/internal/model"
)

// Fetcher retrieves a weekly sales forecast.
type Fetcher interface {
	GetForecast(ctx context.Context, weeks int) ([]model.ForecastPoint, error)
}

// Summary describes a forecast horizon at a glance.
type Summary struct {
	Weeks  int
	Total  float64
	Mean   float64
	Min    float64
	Max    float64
	Peak   time.Time
	Trough time.Time
	First  time.Time
	Last   time.Time
}

// Summarize computes totals and extremes over points.
func Summarize(points []model.ForecastPoint) Summary {
	var s Summary
	if len(points) == 0 {
		return s
	}
	s.Weeks = len(points)
	s.Min, s.Max = points[0].Sales, points[0].Sales
	s.Peak, s.Trough = points[0].Date, points[0].Date
	s.First, s.Last = points[0].Date, points[0].Date
	for _, p := range points {
		s.Total += p.Sales
		if p.Sales > s.Max {
			s.Max, s.Peak = p.Sales, p.Date
		}
		if p.Sales < s.Min {
			s.Min, s.Trough = p.Sales, p.Date
		}
		if p.Date.Before(s.First) {
			s.First = p.Date
		}
		if p.Date.After(s.Last) {
			s.Last = p.Date
		}
	}
	s.Mean = s.Total / float64(len(points))
	return s
}

// MonthlyTotals aggregates weekly predictions into per-month buckets keyed by
// the week's start date.
func MonthlyTotals(points []model.ForecastPoint) map[time.Time]float64 {
	buckets := make(map[time.Time]float64)
	for _, p := range points {
		key := time.Date(p.Date.Year(), p.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		buckets[key] += p.Sales
	}
	return buckets
}

// SortedMonthKeys returns sorted month keys.
func SortedMonthKeys(m map[time.Time]float64) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
