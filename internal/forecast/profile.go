package forecast

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Season names a calendar band of the seasonal profile.
type Season string

const (
	SeasonHarmattan Season = "harmattan"
	SeasonHotDry    Season = "hot_dry"
	SeasonRainy     Season = "rainy"
)

// WeatherImpact carries per-factor coefficients. On a season it is the fixed impact of
// that season's weather; on a category it is how strongly the category reacts to each
// factor.
type WeatherImpact struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	Humidity    float64 `yaml:"humidity" json:"humidity"`
	Rainfall    float64 `yaml:"rainfall" json:"rainfall"`
}

// SeasonBand maps calendar months to a season.
type SeasonBand struct {
	Name    Season        `yaml:"name"`
	Months  []time.Month  `yaml:"months"`
	Weather WeatherImpact `yaml:"weather"`
}

// SeasonCategory keys the multiplier table.
type SeasonCategory struct {
	Season   Season
	Category string
}

// Profile is the static seasonal rule table: category multipliers per season plus the
// weather-sensitivity of the categories on the weather allow-list.
type Profile struct {
	Seasons     []SeasonBand
	Multipliers map[SeasonCategory]float64
	Sensitivity map[string]WeatherImpact
}

// NormalizeCategory lower-cases and trims a category so lookups are forgiving.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// SeasonFor returns the band covering the month of t. A month no band claims resolves
// to a neutral band with the zero season name.
func (p *Profile) SeasonFor(t time.Time) SeasonBand {
	month := t.Month()
	for _, band := range p.Seasons {
		for _, m := range band.Months {
			if m == month {
				return band
			}
		}
	}
	return SeasonBand{}
}

// Multiplier looks up the seasonal multiplier for a category.
func (p *Profile) Multiplier(season Season, category string) (float64, bool) {
	m, ok := p.Multipliers[SeasonCategory{Season: season, Category: NormalizeCategory(category)}]
	return m, ok
}

// WeatherSensitivity reports the category's weather reaction if it is weather-sensitive.
func (p *Profile) WeatherSensitivity(category string) (WeatherImpact, bool) {
	s, ok := p.Sensitivity[NormalizeCategory(category)]
	return s, ok
}

// DefaultProfile is a tropical three-season calendar tuned for a pharmacy item mix.
func DefaultProfile() *Profile {
	p := &Profile{
		Seasons: []SeasonBand{
			{
				Name:    SeasonHarmattan,
				Months:  []time.Month{time.November, time.December, time.January, time.February},
				Weather: WeatherImpact{Temperature: -0.10, Humidity: -0.30, Rainfall: -0.40},
			},
			{
				Name:    SeasonHotDry,
				Months:  []time.Month{time.March, time.April, time.May},
				Weather: WeatherImpact{Temperature: 0.30, Humidity: -0.10, Rainfall: -0.20},
			},
			{
				Name:    SeasonRainy,
				Months:  []time.Month{time.June, time.July, time.August, time.September, time.October},
				Weather: WeatherImpact{Temperature: -0.05, Humidity: 0.35, Rainfall: 0.50},
			},
		},
		Multipliers: make(map[SeasonCategory]float64),
		Sensitivity: map[string]WeatherImpact{
			"antimalarial": {Temperature: 0.1, Humidity: 0.3, Rainfall: 0.4},
			"respiratory":  {Temperature: -0.5, Humidity: 0.2, Rainfall: 0.1},
			"rehydration":  {Temperature: 0.8, Humidity: 0.1, Rainfall: 0.2},
		},
	}

	table := map[string][3]float64{
		//                 harmattan, hot_dry, rainy
		"antimalarial":   {0.85, 1.00, 1.45},
		"respiratory":    {1.35, 1.00, 1.15},
		"rehydration":    {0.90, 1.30, 1.20},
		"antihistamine":  {1.30, 1.10, 0.95},
		"dermatological": {1.20, 1.15, 1.00},
		"analgesic":      {1.05, 1.00, 1.05},
		"antibiotic":     {1.10, 1.00, 1.10},
	}
	seasons := [3]Season{SeasonHarmattan, SeasonHotDry, SeasonRainy}
	for category, row := range table {
		for i, season := range seasons {
			p.Multipliers[SeasonCategory{Season: season, Category: category}] = row[i]
		}
	}
	return p
}

// profileDocument is the on-disk YAML layout.
type profileDocument struct {
	Seasons    []SeasonBand                `yaml:"seasons"`
	Categories map[string]categoryDocument `yaml:"categories"`
	Market     map[string]float64          `yaml:"market_trends"`
}

type categoryDocument struct {
	Seasonal map[string]float64 `yaml:"seasonal"`
	Weather  *WeatherImpact     `yaml:"weather"`
}

// ParseProfile decodes a YAML profile document. The optional market_trends section is
// returned as a static provider (nil when absent).
func ParseProfile(data []byte) (*Profile, StaticMarketTrends, error) {
	var doc profileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode seasonal profile: %w", err)
	}
	if len(doc.Seasons) == 0 {
		return nil, nil, fmt.Errorf("seasonal profile defines no seasons")
	}

	known := make(map[Season]bool, len(doc.Seasons))
	for _, band := range doc.Seasons {
		if band.Name == "" {
			return nil, nil, fmt.Errorf("seasonal profile has a season without a name")
		}
		for _, m := range band.Months {
			if m < time.January || m > time.December {
				return nil, nil, fmt.Errorf("season %s: invalid month %d", band.Name, m)
			}
		}
		known[band.Name] = true
	}

	p := &Profile{
		Seasons:     doc.Seasons,
		Multipliers: make(map[SeasonCategory]float64),
		Sensitivity: make(map[string]WeatherImpact),
	}
	for rawCategory, cat := range doc.Categories {
		category := NormalizeCategory(rawCategory)
		for season, multiplier := range cat.Seasonal {
			if !known[Season(season)] {
				return nil, nil, fmt.Errorf("category %s references unknown season %s", rawCategory, season)
			}
			p.Multipliers[SeasonCategory{Season: Season(season), Category: category}] = multiplier
		}
		if cat.Weather != nil {
			p.Sensitivity[category] = *cat.Weather
		}
	}

	var trends StaticMarketTrends
	if len(doc.Market) > 0 {
		trends = make(StaticMarketTrends, len(doc.Market))
		for category, growth := range doc.Market {
			trends[NormalizeCategory(category)] = growth
		}
	}
	return p, trends, nil
}

// LoadProfileFile reads a YAML profile from disk.
func LoadProfileFile(path string) (*Profile, StaticMarketTrends, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read seasonal profile %s: %w", path, err)
	}
	return ParseProfile(data)
}
