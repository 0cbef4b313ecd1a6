// Package weather implements the environmental-data side of the resort
// backend: provider adapters normalizing two structurally different upstream
// APIs into one canonical per-elevation-band model, plus the pure
// aggregation functions derived data is computed with.
package weather

import "time"

// Condition is the shared weather-condition taxonomy both providers map
// into. Unknown upstream codes map to ConditionClear rather than failing.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly-cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionFog          Condition = "fog"
	ConditionLightRain    Condition = "light-rain"
	ConditionRain         Condition = "rain"
	ConditionHeavyRain    Condition = "heavy-rain"
	ConditionSnow         Condition = "snow"
	ConditionHeavySnow    Condition = "heavy-snow"
	ConditionThunder      Condition = "thunder"
)

// Band identifies one elevation band of the resort.
type Band struct {
	Name      string  `json:"name"`
	AltitudeM int     `json:"altitudeM"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Current holds the present conditions for a band. FeelsLikeC is the
// wind-chill adjusted temperature. FreezingLevelM is nullable: only one
// provider reports it.
type Current struct {
	Time             time.Time `json:"time"`
	TemperatureC     float64   `json:"temperatureC"`
	FeelsLikeC       float64   `json:"feelsLikeC"`
	PrecipMM         float64   `json:"precipMm"`
	SnowfallCM       float64   `json:"snowfallCm"`
	WindSpeedKmh     float64   `json:"windSpeedKmh"`
	WindDirectionDeg float64   `json:"windDirectionDeg"`
	Condition        Condition `json:"condition"`
	FreezingLevelM   *float64  `json:"freezingLevelM,omitempty"`
}

// HourlySeries is a set of parallel arrays: for every i, Time[i] describes
// the sample all other fields hold at index i. Time must be monotonically
// increasing, and within one payload every band's series starts at the same
// instant.
type HourlySeries struct {
	Time             []time.Time `json:"time"`
	TemperatureC     []float64   `json:"temperatureC"`
	PrecipMM         []float64   `json:"precipMm"`
	SnowfallCM       []float64   `json:"snowfallCm"`
	WindSpeedKmh     []float64   `json:"windSpeedKmh"`
	WindDirectionDeg []float64   `json:"windDirectionDeg"`
	Condition        []Condition `json:"condition"`
}

// Len returns the number of samples in the series.
func (s HourlySeries) Len() int { return len(s.Time) }

// DailySeries is the per-day rollup, parallel-array shaped like
// HourlySeries.
type DailySeries struct {
	Time       []time.Time `json:"time"`
	TempMaxC   []float64   `json:"tempMaxC"`
	TempMinC   []float64   `json:"tempMinC"`
	PrecipMM   []float64   `json:"precipMm"`
	SnowfallCM []float64   `json:"snowfallCm"`
	Condition  []Condition `json:"condition"`
}

// BandReading is one elevation band's normalized data.
type BandReading struct {
	Band    Band         `json:"band"`
	Current Current      `json:"current"`
	Hourly  HourlySeries `json:"hourly"`
	Daily   DailySeries  `json:"daily"`
}

// Payload is the weather subject's Reading payload: one entry per elevation
// band plus the derived snow summary.
type Payload struct {
	Bands   []BandReading `json:"bands"`
	Summary SnowSummary   `json:"summary"`
}

// SnowSummary carries the derived fields computed by Enrich after a
// successful fetch: rolling snowfall totals, forward buckets, and the
// inferred snow line.
type SnowSummary struct {
	SnowLast24hCM float64       `json:"snowLast24hCm"`
	SnowNext24hCM float64       `json:"snowNext24hCm"`
	SnowNext72h   []BucketTotal `json:"snowNext72h"`
	SnowLine      string        `json:"snowLine"`
	VillageTempC  float64       `json:"villageTempC"`
	SummitTempC   float64       `json:"summitTempC"`
	VillageFeelsC float64       `json:"villageFeelsC"`
	SummitFeelsC  float64       `json:"summitFeelsC"`
}

func (p Payload) bandNamed(name string) (BandReading, bool) {
	for _, b := range p.Bands {
		if b.Band.Name == name {
			return b, true
		}
	}
	return BandReading{}, false
}
