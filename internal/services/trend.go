package services

import (
	"math"
)

const (
	trendNotEnoughData = "Not enough data for trend analysis"
	trendWindow        = 3
	trendSignificant   = 10.0
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// NumericTrend describes a week of screen times (minutes, oldest first) by
// comparing the mean of the last three entries with the first three.
func NumericTrend(recent []float64) string {
	if len(recent) < 7 {
		return trendNotEnoughData
	}
	week := recent[len(recent)-7:]
	change := round(mean(week[len(week)-trendWindow:])-mean(week[:trendWindow]), 1)

	switch {
	case change > trendSignificant:
		return "Screen time shows significant increase this week"
	case change > 0:
		return "Screen time showing gradual increase"
	case change < -trendSignificant:
		return "Screen time decreased significantly this week"
	case change < 0:
		return "Screen time showing gradual decrease"
	default:
		return "Screen time remains stable this week"
	}
}
