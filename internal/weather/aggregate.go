package weather

import (
	"fmt"
	"math"
	"time"
)

// This file is the aggregation engine: pure, deterministic functions over a
// normalized payload. No I/O, no clocks; callers pass the reference instant.

// BucketTotal is one bucket of a forward-looking partition: the bucket's
// first sample time and the rounded sum of the field within it.
type BucketTotal struct {
	Time time.Time `json:"time"`
	Sum  float64   `json:"sum"`
}

// RollingSum sums values for hourly samples with time >= start, stopping
// once windowHours samples are included. The window counts samples, not
// wall-clock hours: if the series has gaps the two diverge, and the sample
// count is what matches the upstream data volume. Result is rounded to one
// decimal place.
func RollingSum(times []time.Time, values []float64, start time.Time, windowHours int) float64 {
	var sum float64
	taken := 0
	for i, t := range times {
		if t.Before(start) {
			continue
		}
		if taken >= windowHours || i >= len(values) {
			break
		}
		sum += values[i]
		taken++
	}
	return round1(sum)
}

// Bucket partitions the forward-looking series into consecutive buckets of
// bucketHours samples each, a trailing partial bucket included, stopping
// after maxTotalHours samples. Each bucket is stamped with its first
// sample's time.
func Bucket(times []time.Time, values []float64, start time.Time, bucketHours, maxTotalHours int) []BucketTotal {
	if bucketHours <= 0 {
		return nil
	}

	var (
		buckets []BucketTotal
		current *BucketTotal
		inBkt   int
		total   int
	)

	flush := func() {
		if current != nil {
			current.Sum = round1(current.Sum)
			buckets = append(buckets, *current)
			current = nil
			inBkt = 0
		}
	}

	for i, t := range times {
		if t.Before(start) {
			continue
		}
		if total >= maxTotalHours || i >= len(values) {
			break
		}
		if current == nil {
			current = &BucketTotal{Time: t}
		}
		current.Sum += values[i]
		inBkt++
		total++
		if inBkt == bucketHours {
			flush()
		}
	}
	flush()

	return buckets
}

// WindChill applies the Canadian wind-chill formula, active only for
// tempC <= 10 and windKmh >= 4.8; outside those bounds the air temperature
// is returned unchanged. Output is rounded to the nearest integer.
func WindChill(tempC, windKmh float64) float64 {
	if tempC > 10 || windKmh < 4.8 {
		return tempC
	}
	v := math.Pow(windKmh, 0.16)
	chill := 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
	return math.Round(chill)
}

// SnowPolicy holds the temperature thresholds the snow-line classification
// works from. All values are configuration, not constants: the resort tunes
// them per season.
//
//   - VillageSnowMaxC: at or below this at village level, snow falls to the
//     village.
//   - SummitSnowMaxC: at or below this at the summit (while the village is
//     warmer), snow falls above the inferred snow line only.
//   - SummitMixedMaxC: at or below this at the summit, conditions are mixed
//     (rain/sleet/snow).
//   - Anything warmer: no snow.
type SnowPolicy struct {
	VillageSnowMaxC float64
	SummitSnowMaxC  float64
	SummitMixedMaxC float64
}

// DefaultSnowPolicy matches the thresholds the resort has run with.
func DefaultSnowPolicy() SnowPolicy {
	return SnowPolicy{
		VillageSnowMaxC: 1.5,
		SummitSnowMaxC:  1.5,
		SummitMixedMaxC: 3.5,
	}
}

// ClassifySnowCondition derives a 4-way snow-line description from the
// village and summit current conditions. When the provider reports a
// freezing-level altitude it anchors the snow line; otherwise the
// mid-station altitude stands in.
func ClassifySnowCondition(policy SnowPolicy, village, summit Current, midAltitudeM int) string {
	snowLineM := midAltitudeM
	if summit.FreezingLevelM != nil {
		// Snow typically reaches ~300 m below the freezing level.
		snowLineM = int(*summit.FreezingLevelM) - 300
		if snowLineM < 0 {
			snowLineM = 0
		}
	}

	switch {
	case village.TemperatureC <= policy.VillageSnowMaxC:
		return "snow to village level"
	case summit.TemperatureC <= policy.SummitSnowMaxC:
		return fmt.Sprintf("snow above ~%dm", roundTo50(snowLineM))
	case summit.TemperatureC <= policy.SummitMixedMaxC:
		return "mixed conditions"
	default:
		return "no snow (too warm)"
	}
}

// Enrich computes the derived snow summary for a freshly fetched payload.
// Wired into the cache coordinator's fetch path.
func Enrich(policy SnowPolicy, midAltitudeM int) func(Payload, time.Time) Payload {
	return func(p Payload, now time.Time) Payload {
		village, okV := p.bandNamed("village")
		summit, okS := p.bandNamed("summit")
		if !okV || !okS {
			return p
		}

		// Window counts scale with the series' sample step so the summary
		// spans stay truthful for both providers: a 3-hour-slot series
		// contributes 8 samples per 24 hours, not 24.
		step := sampleStepHours(summit.Hourly)
		per24 := 24 / step
		per72 := 72 / step

		// Past samples only for the trailing total; a series without
		// history (the primary reports forward-only) contributes 0.
		past := 0
		for past < summit.Hourly.Len() && summit.Hourly.Time[past].Before(now) {
			past++
		}

		p.Summary = SnowSummary{
			SnowLast24hCM: RollingSum(summit.Hourly.Time[:past], summit.Hourly.SnowfallCM[:past], now.Add(-24*time.Hour), per24),
			SnowNext24hCM: RollingSum(summit.Hourly.Time, summit.Hourly.SnowfallCM, now, per24),
			SnowNext72h:   Bucket(summit.Hourly.Time, summit.Hourly.SnowfallCM, now, per24, per72),
			SnowLine:      ClassifySnowCondition(policy, village.Current, summit.Current, midAltitudeM),
			VillageTempC:  village.Current.TemperatureC,
			SummitTempC:   summit.Current.TemperatureC,
			VillageFeelsC: WindChill(village.Current.TemperatureC, village.Current.WindSpeedKmh),
			SummitFeelsC:  WindChill(summit.Current.TemperatureC, summit.Current.WindSpeedKmh),
		}
		return p
	}
}

// sampleStepHours infers the series' resolution from its first interval,
// clamped to [1, 24] hours.
func sampleStepHours(s HourlySeries) int {
	if s.Len() < 2 {
		return 1
	}
	h := int(s.Time[1].Sub(s.Time[0]).Hours())
	if h < 1 {
		return 1
	}
	if h > 24 {
		return 24
	}
	return h
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundTo50(m int) int {
	return int(math.Round(float64(m)/50) * 50)
}
