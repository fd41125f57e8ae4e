package forecast

import "math"

const (
	// DefaultPeriodDemand is the flat per-period forecast used whenever an estimator
	// does not have enough history.
	DefaultPeriodDemand = 10.0

	trendMinObservations     = 4
	smoothingMinObservations = 3
	cyclicalMinObservations  = 12

	smoothingAlpha  = 0.3
	smoothingGrowth = 1.05
	cyclePhases     = 4
)

// Estimate is one estimator's per-period output. Keys are 1-based future periods.
type Estimate struct {
	Name     string
	Weight   float64
	Values   map[int]float64
	Fallback bool
}

// Estimator produces a forecast for the next n periods of a series.
type Estimator interface {
	Name() string
	Weight() float64
	Estimate(series []float64, periods int) Estimate
}

func fallbackEstimate(e Estimator, periods int) Estimate {
	values := make(map[int]float64, periods)
	for p := 1; p <= periods; p++ {
		values[p] = DefaultPeriodDemand
	}
	return Estimate{Name: e.Name(), Weight: e.Weight(), Values: values, Fallback: true}
}

// TrendEstimator fits an ordinary least-squares line over (index, quantity).
type TrendEstimator struct {
	weight float64
}

func NewTrendEstimator(weight float64) *TrendEstimator {
	return &TrendEstimator{weight: weight}
}

func (e *TrendEstimator) Name() string    { return "trend" }
func (e *TrendEstimator) Weight() float64 { return e.weight }

func (e *TrendEstimator) Estimate(series []float64, periods int) Estimate {
	n := len(series)
	if n < trendMinObservations {
		return fallbackEstimate(e, periods)
	}

	slope, intercept := leastSquares(series)
	values := make(map[int]float64, periods)
	for p := 1; p <= periods; p++ {
		x := float64(n - 1 + p)
		values[p] = math.Max(0, intercept+slope*x)
	}
	return Estimate{Name: e.Name(), Weight: e.weight, Values: values}
}

// leastSquares returns slope and intercept of y over x = 0..n-1.
func leastSquares(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// SmoothingEstimator applies single exponential smoothing and projects the final level
// forward with a fixed compounding growth.
type SmoothingEstimator struct {
	weight float64
}

func NewSmoothingEstimator(weight float64) *SmoothingEstimator {
	return &SmoothingEstimator{weight: weight}
}

func (e *SmoothingEstimator) Name() string    { return "smoothing" }
func (e *SmoothingEstimator) Weight() float64 { return e.weight }

func (e *SmoothingEstimator) Estimate(series []float64, periods int) Estimate {
	if len(series) < smoothingMinObservations {
		return fallbackEstimate(e, periods)
	}

	level := series[0]
	for _, v := range series[1:] {
		level = smoothingAlpha*v + (1-smoothingAlpha)*level
	}

	values := make(map[int]float64, periods)
	for p := 1; p <= periods; p++ {
		values[p] = math.Max(0, level*math.Pow(smoothingGrowth, float64(p)))
	}
	return Estimate{Name: e.Name(), Weight: e.weight, Values: values}
}

// CyclicalEstimator scales the overall mean by a 4-period seasonal index.
type CyclicalEstimator struct {
	weight float64
}

func NewCyclicalEstimator(weight float64) *CyclicalEstimator {
	return &CyclicalEstimator{weight: weight}
}

func (e *CyclicalEstimator) Name() string    { return "cyclical" }
func (e *CyclicalEstimator) Weight() float64 { return e.weight }

func (e *CyclicalEstimator) Estimate(series []float64, periods int) Estimate {
	n := len(series)
	if n < cyclicalMinObservations {
		return fallbackEstimate(e, periods)
	}

	index := seasonalIndex(series)
	overall := mean(series)

	values := make(map[int]float64, periods)
	for p := 1; p <= periods; p++ {
		phase := (n - 1 + p) % cyclePhases
		values[p] = math.Max(0, overall*index[phase])
	}
	return Estimate{Name: e.Name(), Weight: e.weight, Values: values}
}

// seasonalIndex averages observations sharing a phase and normalises against the
// overall mean. A zero mean yields a neutral index.
func seasonalIndex(series []float64) [cyclePhases]float64 {
	var sums [cyclePhases]float64
	var counts [cyclePhases]int
	for i, v := range series {
		sums[i%cyclePhases] += v
		counts[i%cyclePhases]++
	}

	overall := mean(series)
	var index [cyclePhases]float64
	for phase := range index {
		if overall == 0 || counts[phase] == 0 {
			index[phase] = 1
			continue
		}
		index[phase] = (sums[phase] / float64(counts[phase])) / overall
	}
	return index
}
