package forecast

import (
	"math"
	"time"
)

const (
	MinMultiplier = 0.5
	MaxMultiplier = 2.0
)

// Adjustment is the environmental multiplier resolved for one category on one date.
type Adjustment struct {
	Season       Season
	Seasonal     float64
	Weather      float64
	Multiplier   float64
	WeatherAware bool
}

// Adjuster applies the seasonal profile to ensemble forecasts.
type Adjuster struct {
	profile *Profile
}

// NewAdjuster builds an adjuster; a nil profile means DefaultProfile.
func NewAdjuster(profile *Profile) *Adjuster {
	if profile == nil {
		profile = DefaultProfile()
	}
	return &Adjuster{profile: profile}
}

// Resolve returns the multiplier for a category on the given date. Categories missing
// from the table are neutral (1.0).
func (a *Adjuster) Resolve(category string, at time.Time) Adjustment {
	band := a.profile.SeasonFor(at)
	adj := Adjustment{Season: band.Name, Seasonal: 1, Weather: 1}

	if m, ok := a.profile.Multiplier(band.Name, category); ok {
		adj.Seasonal = m
	}
	if sens, ok := a.profile.WeatherSensitivity(category); ok {
		adj.WeatherAware = true
		adj.Weather = WeatherFactor(sens, band.Weather)
	}
	adj.Multiplier = clampMultiplier(adj.Seasonal * adj.Weather)
	return adj
}

// WeatherFactor turns a season's weather coefficients into a multiplier for a category,
// bounded to [MinMultiplier, MaxMultiplier].
func WeatherFactor(sensitivity, season WeatherImpact) float64 {
	f := 1 +
		sensitivity.Temperature*season.Temperature +
		sensitivity.Humidity*season.Humidity +
		sensitivity.Rainfall*season.Rainfall
	return clampMultiplier(f)
}

// Apply scales every period by the multiplier, rounding and clamping at zero.
func (adj Adjustment) Apply(quantities []int) []int {
	out := make([]int, len(quantities))
	for i, q := range quantities {
		out[i] = clampRound(float64(q) * adj.Multiplier)
	}
	return out
}

func clampMultiplier(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Min(MaxMultiplier, math.Max(MinMultiplier, v))
}
