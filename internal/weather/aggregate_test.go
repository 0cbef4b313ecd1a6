package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyTimes(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRollingSum(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	times := hourlyTimes(start, 24)
	values := repeat(1.0, 24)

	assert.Equal(t, 24.0, RollingSum(times, values, start, 24))
	assert.Equal(t, 6.0, RollingSum(times, values, start, 6))
}

func TestRollingSumSkipsSamplesBeforeStart(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	times := hourlyTimes(start, 10)
	values := repeat(2.0, 10)

	// Window starts 4 samples in; only 6 remain.
	got := RollingSum(times, values, start.Add(4*time.Hour), 24)
	assert.Equal(t, 12.0, got)
}

func TestRollingSumCountsSamplesNotWallClock(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	// Gapped series: samples every 3 hours.
	times := make([]time.Time, 8)
	for i := range times {
		times[i] = start.Add(time.Duration(i*3) * time.Hour)
	}
	values := repeat(1.0, 8)

	// windowHours counts samples: 4 samples, not 4 wall-clock hours.
	assert.Equal(t, 4.0, RollingSum(times, values, start, 4))
}

func TestRollingSumRoundsToOneDecimal(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	times := hourlyTimes(start, 3)
	values := []float64{0.11, 0.22, 0.33}

	assert.Equal(t, 0.7, RollingSum(times, values, start, 3))
}

func TestBucket(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	times := hourlyTimes(start, 60)
	values := repeat(0.5, 60)

	buckets := Bucket(times, values, start, 24, 72)

	// 60 samples available, 72 allowed: 24 + 24 + trailing 12.
	require.Len(t, buckets, 3)
	assert.Equal(t, start, buckets[0].Time)
	assert.Equal(t, start.Add(24*time.Hour), buckets[1].Time)
	assert.Equal(t, start.Add(48*time.Hour), buckets[2].Time)
	assert.Equal(t, 12.0, buckets[0].Sum)
	assert.Equal(t, 12.0, buckets[1].Sum)
	assert.Equal(t, 6.0, buckets[2].Sum) // trailing partial bucket
}

func TestBucketStopsAtMaxTotalHours(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	times := hourlyTimes(start, 100)
	values := repeat(1.0, 100)

	buckets := Bucket(times, values, start, 24, 72)

	require.Len(t, buckets, 3)
	for _, b := range buckets {
		assert.Equal(t, 24.0, b.Sum)
	}
}

func TestWindChill(t *testing.T) {
	// Active: feels colder than air temperature.
	assert.Less(t, WindChill(0, 30), 0.0)

	// Guard inactive above 10°C.
	assert.Equal(t, 15.0, WindChill(15, 30))

	// Guard inactive below the wind floor.
	assert.Equal(t, -5.0, WindChill(-5, 3))

	// Integer rounding.
	got := WindChill(-10, 25)
	assert.Equal(t, got, float64(int(got)))
}

func TestClassifySnowCondition(t *testing.T) {
	policy := DefaultSnowPolicy()

	cases := []struct {
		name    string
		village float64
		summit  float64
		want    string
	}{
		{"cold everywhere", -3, -8, "snow to village level"},
		{"cold summit only", 4, 0.5, "snow above ~1200m"},
		{"marginal summit", 5, 3, "mixed conditions"},
		{"warm everywhere", 12, 6, "no snow (too warm)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifySnowCondition(policy,
				Current{TemperatureC: tc.village},
				Current{TemperatureC: tc.summit},
				1220,
			)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifySnowConditionUsesFreezeLevel(t *testing.T) {
	policy := DefaultSnowPolicy()
	freeze := 1500.0

	got := ClassifySnowCondition(policy,
		Current{TemperatureC: 4},
		Current{TemperatureC: 0.5, FreezingLevelM: &freeze},
		1220,
	)

	// 1500m freeze level - 300m = 1200m snow line.
	assert.Equal(t, "snow above ~1200m", got)
}

func TestEnrichComputesSummary(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	mkBand := func(name string, temp float64) BandReading {
		// 24h of history plus 72h forward, 1cm/h of snow throughout.
		times := hourlyTimes(now.Add(-24*time.Hour), 96)
		return BandReading{
			Band:    Band{Name: name},
			Current: Current{TemperatureC: temp, WindSpeedKmh: 20},
			Hourly: HourlySeries{
				Time:             times,
				TemperatureC:     repeat(temp, 96),
				PrecipMM:         repeat(0, 96),
				SnowfallCM:       repeat(1.0, 96),
				WindSpeedKmh:     repeat(20, 96),
				WindDirectionDeg: repeat(270, 96),
				Condition:        make([]Condition, 96),
			},
		}
	}

	enrich := Enrich(DefaultSnowPolicy(), 1220)
	p := enrich(Payload{Bands: []BandReading{
		mkBand("village", -2),
		mkBand("mid", -5),
		mkBand("summit", -8),
	}}, now)

	assert.Equal(t, 24.0, p.Summary.SnowLast24hCM)
	assert.Equal(t, 24.0, p.Summary.SnowNext24hCM)
	require.Len(t, p.Summary.SnowNext72h, 3)
	assert.Equal(t, "snow to village level", p.Summary.SnowLine)
	assert.Equal(t, -2.0, p.Summary.VillageTempC)
	assert.Less(t, p.Summary.SummitFeelsC, -8.0)
}

func TestEnrichScalesWindowToSampleStep(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	mkBand := func(name string, temp float64) BandReading {
		// 3-hour slots: 8 samples of history, 24 forward (72h), 1.5cm each.
		n := 32
		times := make([]time.Time, n)
		for i := range times {
			times[i] = now.Add(-24 * time.Hour).Add(time.Duration(i*3) * time.Hour)
		}
		return BandReading{
			Band:    Band{Name: name},
			Current: Current{TemperatureC: temp},
			Hourly: HourlySeries{
				Time:             times,
				TemperatureC:     repeat(temp, n),
				PrecipMM:         repeat(0, n),
				SnowfallCM:       repeat(1.5, n),
				WindSpeedKmh:     repeat(10, n),
				WindDirectionDeg: repeat(270, n),
				Condition:        make([]Condition, n),
			},
		}
	}

	enrich := Enrich(DefaultSnowPolicy(), 1220)
	p := enrich(Payload{Bands: []BandReading{
		mkBand("village", -2),
		mkBand("summit", -8),
	}}, now)

	// 8 samples of 1.5cm cover exactly 24 wall-clock hours, not 72.
	assert.Equal(t, 12.0, p.Summary.SnowLast24hCM)
	assert.Equal(t, 12.0, p.Summary.SnowNext24hCM)
	require.Len(t, p.Summary.SnowNext72h, 3)
	for _, b := range p.Summary.SnowNext72h {
		assert.Equal(t, 12.0, b.Sum)
	}
}
