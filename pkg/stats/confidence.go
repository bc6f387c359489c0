package stats

import "math"

// Interval is a two-sided confidence interval around a sample mean.
type Interval struct {
	Lower float64
	Upper float64
}

// ConfidenceInterval estimates the interval containing the true mean of the
// sampled quantity at the given certainty (0 < certainty < 1), using the
// normal approximation: mean ± z·(s/√n) with z = Φ⁻¹((1+certainty)/2) and s
// the sample standard deviation.
//
// With no samples, or an out-of-range certainty, it reports ok == false.
// With a single sample the interval degenerates to {v, v}: one observation
// carries no spread information but still steers estimation.
func ConfidenceInterval(samples []float64, certainty float64) (Interval, bool) {
	if len(samples) == 0 || certainty <= 0 || certainty >= 1 {
		return Interval{}, false
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}
	n := float64(len(samples))
	mean := sum / n

	if len(samples) == 1 {
		return Interval{Lower: mean, Upper: mean}, true
	}

	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / (n - 1))
	margin := normalQuantile((1+certainty)/2) * stddev / math.Sqrt(n)

	return Interval{Lower: mean - margin, Upper: mean + margin}, true
}

// normalQuantile returns Φ⁻¹(p), the p-quantile of the standard normal
// distribution, via the inverse error function.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
