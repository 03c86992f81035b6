package correlation

import (
	"math"
	"sort"

	"CustodianSync/internal/domain/models"
)

// Pearson computes the Pearson correlation coefficient for two equal
// length series. Zero-length input or a zero-variance series yields 0.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	r := cov / math.Sqrt(varX*varY)
	// Floating point can push |r| marginally past 1.
	return math.Max(-1, math.Min(1, r))
}

// Spearman computes the rank correlation coefficient. Ties share the
// average of the ranks they span.
func Spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	return Pearson(ranks(x), ranks(y))
}

func ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank across the tie group, 1-based.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// Strength buckets |r| at the conventional 0.2/0.4/0.6/0.8 boundaries.
func Strength(r float64) models.CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs < 0.2:
		return models.StrengthVeryWeak
	case abs < 0.4:
		return models.StrengthWeak
	case abs < 0.6:
		return models.StrengthModerate
	case abs < 0.8:
		return models.StrengthStrong
	default:
		return models.StrengthVeryStrong
	}
}

// PValue estimates the two-tailed significance of r at sample size n
// using the t statistic t = r*sqrt(n-2)/sqrt(1-r^2).
func PValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)) / math.Sqrt(1-r*r)
	return 2 * (1 - tCDF(math.Abs(t), n-2))
}

// tCDF approximates the Student t CDF. For df above 30 the normal
// approximation is within rounding error of the exact value; below that
// a Cornish-Fisher style df adjustment keeps tail estimates usable.
func tCDF(t float64, df int) float64 {
	if df <= 0 {
		return 0.5
	}
	z := t
	if df <= 30 {
		d := float64(df)
		z = t * (1 - 1/(4*d)) / math.Sqrt(1+t*t/(2*d))
	}
	return normCDF(z)
}

func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// ConfidenceInterval returns the 95% interval for r via the Fisher z
// transformation. Degenerate inputs collapse the interval to r itself.
func ConfidenceInterval(r float64, n int) (low, high float64) {
	if n <= 3 || math.Abs(r) >= 1 {
		return r, r
	}
	z := 0.5 * math.Log((1+r)/(1-r))
	se := 1 / math.Sqrt(float64(n-3))
	const z95 = 1.959964
	return math.Tanh(z - z95*se), math.Tanh(z + z95*se)
}

// LaggedCorrelation shifts y backwards by each candidate lag and keeps
// the lag with the largest absolute Pearson coefficient. Lag 0 is the
// unshifted baseline.
func LaggedCorrelation(x, y []float64, maxLag int) (bestLag int, bestR float64) {
	bestR = Pearson(x, y)
	n := len(x)
	if n != len(y) || maxLag <= 0 {
		return 0, bestR
	}
	if limit := n / 3; maxLag > limit {
		maxLag = limit
	}
	for lag := 1; lag <= maxLag; lag++ {
		if n-lag < 2 {
			break
		}
		r := Pearson(x[:n-lag], y[lag:])
		if math.Abs(r) > math.Abs(bestR) {
			bestLag, bestR = lag, r
		}
	}
	return bestLag, bestR
}

// Mean and sample standard deviation of a series.
func meanStddev(values []float64) (mean, stddev float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}
