package history

import "math"

// minSamplesBaseline is the history depth required before any baseline is
// produced; minSamplesTrend additionally gates the trend estimate.
const (
	minSamplesBaseline = 10
	minSamplesTrend    = 14
)

// Baseline is a valve's expected steady-state flow, derived from history.
type Baseline struct {
	LPM         float64  // weighted mean liters per minute
	StdDev      float64  // sample standard deviation of daily averages
	Trend       *float64 // percent change per 30 days; nil below 14 samples
	SampleCount int
}

// Compute derives a baseline from chronologically sorted daily summaries.
// Returns nil with fewer than 10 samples.
func Compute(summaries []DailySummary) *Baseline {
	n := len(summaries)
	if n < minSamplesBaseline {
		return nil
	}

	lpm := make([]float64, n)
	for i, s := range summaries {
		lpm[i] = s.AvgLPM
	}

	// Weighted mean: thirds weighted 0.5/1.0/1.5 oldest to newest, so recent
	// behavior dominates without discarding the older samples.
	var weightedSum, weightTotal float64
	for i, v := range lpm {
		w := 1.0
		switch {
		case float64(i) < float64(n)/3:
			w = 0.5
		case float64(i) < 2*float64(n)/3:
			w = 1.0
		default:
			w = 1.5
		}
		weightedSum += v * w
		weightTotal += w
	}
	mean := weightedSum / weightTotal

	b := &Baseline{
		LPM:         mean,
		StdDev:      sampleStdDev(lpm),
		SampleCount: n,
	}

	if n >= minSamplesTrend {
		trend := trendPctPer30Days(lpm, mean)
		b.Trend = &trend
	}
	return b
}

// sampleStdDev is the unweighted sample standard deviation (n-1 denominator).
func sampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}

// trendPctPer30Days fits an ordinary least-squares slope of LPM against day
// index and rescales it to percent change per 30 days relative to the
// baseline mean.
func trendPctPer30Days(lpm []float64, baselineMean float64) float64 {
	if baselineMean <= 0 {
		return 0
	}
	n := len(lpm)

	xMean := float64(n-1) / 2
	var yMean float64
	for _, y := range lpm {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range lpm {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	slope := num / den // LPM per day

	return slope * 30 / baselineMean * 100
}
