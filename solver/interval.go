package solver

import "math"

const epsilon = 1e-9

type interval struct {
	lo, hi float64
}

var (
	whole   = interval{math.Inf(-1), math.Inf(1)}
	truth   = interval{1, 1}
	falsity = interval{0, 0}
	unknown = interval{0, 1}
)

func point(v float64) interval { return interval{v, v} }

func (i interval) empty() bool { return i.lo > i.hi+epsilon }

func (i interval) singleton() bool { return approxEqual(i.lo, i.hi) }

func (i interval) containsZero() bool { return i.lo <= 0 && i.hi >= 0 }

func (i interval) intersect(o interval) interval {
	return interval{math.Max(i.lo, o.lo), math.Min(i.hi, o.hi)}
}

func (i interval) add(o interval) interval { return interval{i.lo + o.lo, i.hi + o.hi} }

func (i interval) sub(o interval) interval { return interval{i.lo - o.hi, i.hi - o.lo} }

func (i interval) neg() interval { return interval{-i.hi, -i.lo} }

func (i interval) mul(o interval) interval {
	products := [4]float64{
		mulBound(i.lo, o.lo),
		mulBound(i.lo, o.hi),
		mulBound(i.hi, o.lo),
		mulBound(i.hi, o.hi),
	}
	return hull(products[:])
}

// div is the hull of i / o. A divisor spanning zero yields the whole line.
func (i interval) div(o interval) interval {
	if o.containsZero() {
		return whole
	}
	quotients := [4]float64{i.lo / o.lo, i.lo / o.hi, i.hi / o.lo, i.hi / o.hi}
	return hull(quotients[:])
}

func (i interval) widen(by float64) interval { return interval{i.lo - by, i.hi + by} }

func hull(vals []float64) interval {
	out := interval{math.Inf(1), math.Inf(-1)}
	for _, v := range vals {
		if math.IsNaN(v) {
			return whole
		}
		out.lo = math.Min(out.lo, v)
		out.hi = math.Max(out.hi, v)
	}
	return out
}

// mulBound treats 0 * inf as 0, which is the limit the bounds need.
func mulBound(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= epsilon*scale
}

func boolInterval(v bool) interval {
	if v {
		return truth
	}
	return falsity
}
