package analytics

import (
	"math"

	"github.com/montanaflynn/stats"
)

const (
	hurstMinLag = 2
	hurstMaxLag = 100 // exclusive

	// MinEfficiencyDays is the fewest daily observations for which the Hurst estimate is defined:
	// the largest lag must still leave two return differences.
	MinEfficiencyDays = hurstMaxLag + 2
)

// fitLine returns the ordinary least-squares slope and intercept of ys against xs.
// A series with no spread in x yields a flat line through the mean of ys.
func fitLine(xs, ys []float64) (slope, intercept float64) {
	mx, _ := stats.Mean(xs)
	my, _ := stats.Mean(ys)
	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx == 0 {
		return 0, my
	}
	slope = sxy / sxx
	return slope, my - slope*mx
}

// pearson returns the correlation of a and b, reporting false when either series is constant
// or fewer than two points overlap.
func pearson(a, b []float64) (float64, bool) {
	if len(a) < 2 || len(a) != len(b) {
		return 0, false
	}
	sa, _ := stats.StandardDeviationPopulation(a)
	sb, _ := stats.StandardDeviationPopulation(b)
	if sa == 0 || sb == 0 {
		return 0, false
	}
	r, err := stats.Correlation(a, b)
	if err != nil || math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

// hurstExponent estimates H from a daily price series using the variance-of-lagged-differences
// method on log returns. It reports false when the series is too short or degenerate.
func hurstExponent(prices []float64) (float64, bool) {
	if len(prices) < MinEfficiencyDays {
		return 0, false
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			return 0, false
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}

	var logLags, logTaus []float64
	for lag := hurstMinLag; lag < hurstMaxLag; lag++ {
		diffs := make([]float64, len(returns)-lag)
		for i := range diffs {
			diffs[i] = returns[i+lag] - returns[i]
		}
		sd, err := stats.StandardDeviationPopulation(diffs)
		if err != nil {
			return 0, false
		}
		tau := math.Sqrt(sd)
		if tau <= 0 {
			return 0, false
		}
		logLags = append(logLags, math.Log(float64(lag)))
		logTaus = append(logTaus, math.Log(tau))
	}

	slope, _ := fitLine(logLags, logTaus)
	return 2 * slope, true
}
