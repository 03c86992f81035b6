package correlation

import (
	"math"
	"testing"

	"CustodianSync/internal/domain/models"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	if r := Pearson(x, y); !almostEqual(r, 1, 1e-12) {
		t.Fatalf("r = %v, want 1", r)
	}

	inv := []float64{10, 8, 6, 4, 2}
	if r := Pearson(x, inv); !almostEqual(r, -1, 1e-12) {
		t.Fatalf("r = %v, want -1", r)
	}
}

func TestPearsonSymmetry(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	y := []float64{2, 7, 1, 8, 2, 8, 1, 8}
	if Pearson(x, y) != Pearson(y, x) {
		t.Fatalf("pearson not symmetric")
	}
}

func TestPearsonDegenerateInputs(t *testing.T) {
	if r := Pearson(nil, nil); r != 0 {
		t.Fatalf("empty series r = %v", r)
	}
	if r := Pearson([]float64{1, 2}, []float64{1, 2, 3}); r != 0 {
		t.Fatalf("length mismatch r = %v", r)
	}
	if r := Pearson([]float64{5, 5, 5}, []float64{1, 2, 3}); r != 0 {
		t.Fatalf("zero variance r = %v", r)
	}
}

func TestPearsonBounded(t *testing.T) {
	x := []float64{1e10, 2e10, 3e10, 4e10}
	y := []float64{1e10, 2e10, 3e10, 4e10}
	r := Pearson(x, y)
	if r < -1 || r > 1 {
		t.Fatalf("r = %v out of bounds", r)
	}
}

func TestSpearmanMonotonic(t *testing.T) {
	// Monotonic but non-linear: Spearman sees a perfect rank ordering.
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 8, 27, 64, 125}
	if r := Spearman(x, y); !almostEqual(r, 1, 1e-12) {
		t.Fatalf("spearman = %v, want 1", r)
	}
}

func TestRanksWithTies(t *testing.T) {
	got := ranks([]float64{10, 20, 20, 30})
	want := []float64{1, 2.5, 2.5, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranks = %v, want %v", got, want)
		}
	}
}

func TestStrengthBuckets(t *testing.T) {
	cases := []struct {
		r    float64
		want models.CorrelationStrength
	}{
		{0.1, models.StrengthVeryWeak},
		{-0.1, models.StrengthVeryWeak},
		{0.2, models.StrengthWeak},
		{0.39, models.StrengthWeak},
		{0.5, models.StrengthModerate},
		{0.6, models.StrengthStrong},
		{0.79, models.StrengthStrong},
		{0.85, models.StrengthVeryStrong},
		{-0.95, models.StrengthVeryStrong},
	}
	for _, c := range cases {
		if got := Strength(c.r); got != c.want {
			t.Fatalf("Strength(%v) = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestPValue(t *testing.T) {
	if p := PValue(0.9, 2); p != 1 {
		t.Fatalf("n<=2 p = %v, want 1", p)
	}
	if p := PValue(1.0, 50); p != 0 {
		t.Fatalf("|r|=1 p = %v, want 0", p)
	}

	strong := PValue(0.9, 30)
	weak := PValue(0.1, 30)
	if strong >= weak {
		t.Fatalf("p(0.9)=%v should be far below p(0.1)=%v", strong, weak)
	}
	if strong > 0.001 {
		t.Fatalf("p(0.9, n=30) = %v, want near zero", strong)
	}
	if weak < 0.5 {
		t.Fatalf("p(0.1, n=30) = %v, want insignificant", weak)
	}
}

func TestConfidenceInterval(t *testing.T) {
	low, high := ConfidenceInterval(0.6, 50)
	if low >= 0.6 || high <= 0.6 {
		t.Fatalf("interval [%v, %v] must straddle r", low, high)
	}
	if low < -1 || high > 1 {
		t.Fatalf("interval [%v, %v] out of bounds", low, high)
	}

	if l, h := ConfidenceInterval(0.6, 3); l != 0.6 || h != 0.6 {
		t.Fatalf("tiny sample interval = [%v, %v], want collapsed", l, h)
	}

	narrow := func(n int) float64 {
		l, h := ConfidenceInterval(0.6, n)
		return h - l
	}
	if narrow(200) >= narrow(20) {
		t.Fatalf("interval must tighten with sample size")
	}
}

func TestLaggedCorrelationFindsShift(t *testing.T) {
	// y lags x by exactly 2 steps.
	x := make([]float64, 30)
	y := make([]float64, 30)
	for i := range x {
		x[i] = math.Sin(float64(i) / 3)
	}
	for i := 2; i < len(y); i++ {
		y[i] = x[i-2]
	}

	lag, r := LaggedCorrelation(x, y, 10)
	if lag != 2 {
		t.Fatalf("lag = %d, want 2", lag)
	}
	if math.Abs(r) < 0.99 {
		t.Fatalf("r at best lag = %v", r)
	}
}

func TestLaggedCorrelationNoLag(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	lag, r := LaggedCorrelation(x, x, 2)
	if lag != 0 {
		t.Fatalf("lag = %d, want 0", lag)
	}
	if !almostEqual(r, 1, 1e-12) {
		t.Fatalf("r = %v", r)
	}
}

func TestMeanStddev(t *testing.T) {
	mean, sd := meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(mean, 5, 1e-12) {
		t.Fatalf("mean = %v", mean)
	}
	// Sample stddev of this classic set is ~2.138.
	if !almostEqual(sd, 2.13809, 1e-4) {
		t.Fatalf("stddev = %v", sd)
	}

	if m, s := meanStddev(nil); m != 0 || s != 0 {
		t.Fatalf("empty series = %v, %v", m, s)
	}
	if _, s := meanStddev([]float64{3}); s != 0 {
		t.Fatalf("single sample stddev = %v", s)
	}
}
