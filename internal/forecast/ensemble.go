package forecast

import "math"

// Default estimator weights.
const (
	TrendWeight     = 0.3
	SmoothingWeight = 0.4
	CyclicalWeight  = 0.3
)

// Ensemble runs a fixed set of estimators over the same series and blends them.
type Ensemble struct {
	estimators []Estimator
}

// NewEnsemble builds an ensemble from the given estimators.
func NewEnsemble(estimators ...Estimator) *Ensemble {
	return &Ensemble{estimators: estimators}
}

// DefaultEnsemble is trend 0.3, smoothing 0.4, cyclical 0.3.
func DefaultEnsemble() *Ensemble {
	return NewEnsemble(
		NewTrendEstimator(TrendWeight),
		NewSmoothingEstimator(SmoothingWeight),
		NewCyclicalEstimator(CyclicalWeight),
	)
}

// EnsembleForecast is the blended output plus the raw estimates behind it.
type EnsembleForecast struct {
	// Quantities holds one value per future period; index 0 is period 1.
	Quantities []int
	Estimates  []Estimate
}

// Fallbacks counts estimators that used the default flat forecast.
func (f EnsembleForecast) Fallbacks() int {
	var n int
	for _, est := range f.Estimates {
		if est.Fallback {
			n++
		}
	}
	return n
}

// AllFallback reports whether no estimator had enough history.
func (f EnsembleForecast) AllFallback() bool {
	return len(f.Estimates) > 0 && f.Fallbacks() == len(f.Estimates)
}

// Forecast runs every estimator and combines the results.
func (e *Ensemble) Forecast(series []float64, periods int) EnsembleForecast {
	estimates := make([]Estimate, 0, len(e.estimators))
	for _, est := range e.estimators {
		estimates = append(estimates, est.Estimate(series, periods))
	}
	return EnsembleForecast{
		Quantities: Combine(estimates, periods),
		Estimates:  estimates,
	}
}

// Combine blends estimates per period as the weight-normalised average of the
// estimates that carry that period. Fallback estimates count at full weight. Each
// value is rounded and clamped at zero; a period nobody covers is zero.
func Combine(estimates []Estimate, periods int) []int {
	out := make([]int, periods)
	for p := 1; p <= periods; p++ {
		var sum, weights float64
		for _, est := range estimates {
			v, ok := est.Values[p]
			if !ok || est.Weight <= 0 {
				continue
			}
			sum += v * est.Weight
			weights += est.Weight
		}
		if weights == 0 {
			continue
		}
		out[p-1] = clampRound(sum / weights)
	}
	return out
}

func clampRound(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Round(v))
}
