package analytics

import "math"

// running accumulates count, mean, variance (Welford), min, and max of a price series
// in one pass.
type running struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func (r *running) add(x float64) {
	r.count++
	if r.count == 1 {
		r.min, r.max = x, x
	} else {
		r.min = math.Min(r.min, x)
		r.max = math.Max(r.max, x)
	}
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (x - r.mean)
}

// sampleStdDev returns the n-1 standard deviation, or 0 below two samples.
func (r *running) sampleStdDev() float64 {
	if r.count < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.count-1))
}
