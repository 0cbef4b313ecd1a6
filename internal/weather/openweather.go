package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
)

// OpenWeatherProvider is the primary weather source, selected when its API
// key is configured. OpenWeatherMap's forecast endpoint emits one record per
// 3-hour slot; the normalizer merges slots by date (sorted sub-slots) to
// build the daily series, and carries the slots directly as the hourly
// series at 3-hour resolution.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	bands   []Band
	zone    *time.Location
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, bands []Band, zone *time.Location) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/forecast",
		client:  client,
		circuit: provider.NewBreaker("openweathermap"),
		bands:   bands,
		zone:    zone,
	}
}

func (p *OpenWeatherProvider) Name() string { return p.name }

func (p *OpenWeatherProvider) Configured() bool { return p.apiKey != "" }

func (p *OpenWeatherProvider) Fetch(ctx context.Context) (Payload, error) {
	if p.apiKey == "" {
		return Payload{}, provider.ErrNotConfigured
	}

	readings := make([]BandReading, len(p.bands))

	g, gctx := errgroup.WithContext(ctx)
	for i, band := range p.bands {
		i, band := i, band
		g.Go(func() error {
			br, err := p.fetchBand(gctx, band)
			if err != nil {
				return fmt.Errorf("band %s: %w", band.Name, err)
			}
			readings[i] = br
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Payload{}, err
	}

	return Payload{Bands: AlignBands(readings)}, nil
}

func (p *OpenWeatherProvider) fetchBand(ctx context.Context, band Band) (BandReading, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", band.Lat))
	values.Set("lon", fmt.Sprintf("%f", band.Lon))
	values.Set("units", "metric")
	values.Set("appid", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return BandReading{}, err
	}

	resp, err := provider.DoRequest(p.client, p.circuit, req)
	if err != nil {
		return BandReading{}, err
	}
	defer resp.Body.Close()

	var raw openWeatherForecast
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return BandReading{}, fmt.Errorf("%w: %v", provider.ErrMalformedBody, err)
	}

	return normalizeOpenWeather(raw, band, p.zone)
}

// openWeatherForecast mirrors the /data/2.5/forecast response: a flat list
// of 3-hour slots.
type openWeatherForecast struct {
	List []openWeatherSlot `json:"list"`
}

type openWeatherSlot struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain struct {
		ThreeH float64 `json:"3h"` // mm
	} `json:"rain"`
	Snow struct {
		ThreeH float64 `json:"3h"` // mm water equivalent
	} `json:"snow"`
	Weather []struct {
		ID int `json:"id"`
	} `json:"weather"`
}

// normalizeOpenWeather converts the slot list into the canonical model.
// Slots are sorted by time first; upstream usually delivers them ordered
// but the contract does not promise it.
func normalizeOpenWeather(raw openWeatherForecast, band Band, zone *time.Location) (BandReading, error) {
	if len(raw.List) == 0 {
		return BandReading{}, fmt.Errorf("%w: empty forecast list", provider.ErrMalformedBody)
	}

	slots := make([]openWeatherSlot, len(raw.List))
	copy(slots, raw.List)
	sort.Slice(slots, func(i, j int) bool { return slots[i].Dt < slots[j].Dt })

	hourly := HourlySeries{}
	var prev time.Time
	for i, s := range slots {
		t := time.Unix(s.Dt, 0).In(zone)
		if i > 0 && !t.After(prev) {
			return BandReading{}, fmt.Errorf("%w: duplicate forecast slot at %s", provider.ErrMalformedBody, t)
		}
		prev = t

		hourly.Time = append(hourly.Time, t)
		hourly.TemperatureC = append(hourly.TemperatureC, s.Main.Temp)
		hourly.PrecipMM = append(hourly.PrecipMM, s.Rain.ThreeH)
		// Snow depth from water equivalent: ~1 mm water = 1 cm fresh snow.
		hourly.SnowfallCM = append(hourly.SnowfallCM, s.Snow.ThreeH)
		hourly.WindSpeedKmh = append(hourly.WindSpeedKmh, s.Wind.Speed*3.6)
		hourly.WindDirectionDeg = append(hourly.WindDirectionDeg, s.Wind.Deg)
		hourly.Condition = append(hourly.Condition, slotCondition(s))
	}

	daily := mergeSlotsByDate(slots, zone)

	first := slots[0]
	current := Current{
		Time:             hourly.Time[0],
		TemperatureC:     first.Main.Temp,
		FeelsLikeC:       WindChill(first.Main.Temp, first.Wind.Speed*3.6),
		PrecipMM:         first.Rain.ThreeH,
		SnowfallCM:       first.Snow.ThreeH,
		WindSpeedKmh:     first.Wind.Speed * 3.6,
		WindDirectionDeg: first.Wind.Deg,
		Condition:        slotCondition(first),
	}

	return BandReading{Band: band, Current: current, Hourly: hourly, Daily: daily}, nil
}

// mergeSlotsByDate groups the 3-hour slots into per-day records: max/min
// temperature over the day's sub-slots, summed precipitation and snowfall,
// and the most severe sub-slot condition as the day's condition.
func mergeSlotsByDate(slots []openWeatherSlot, zone *time.Location) DailySeries {
	byDate := make(map[string][]openWeatherSlot)
	var dates []string
	for _, s := range slots {
		d := time.Unix(s.Dt, 0).In(zone).Format("2006-01-02")
		if _, seen := byDate[d]; !seen {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], s)
	}
	sort.Strings(dates)

	daily := DailySeries{}
	for _, d := range dates {
		day := byDate[d]
		sort.Slice(day, func(i, j int) bool { return day[i].Dt < day[j].Dt })

		dayStart, _ := time.ParseInLocation("2006-01-02", d, zone)

		maxT, minT := day[0].Main.Temp, day[0].Main.Temp
		var precip, snow float64
		worst := slotCondition(day[0])
		for _, s := range day {
			if s.Main.Temp > maxT {
				maxT = s.Main.Temp
			}
			if s.Main.Temp < minT {
				minT = s.Main.Temp
			}
			precip += s.Rain.ThreeH
			snow += s.Snow.ThreeH
			if c := slotCondition(s); conditionSeverity(c) > conditionSeverity(worst) {
				worst = c
			}
		}

		daily.Time = append(daily.Time, dayStart)
		daily.TempMaxC = append(daily.TempMaxC, maxT)
		daily.TempMinC = append(daily.TempMinC, minT)
		daily.PrecipMM = append(daily.PrecipMM, precip)
		daily.SnowfallCM = append(daily.SnowfallCM, snow)
		daily.Condition = append(daily.Condition, worst)
	}

	return daily
}

func slotCondition(s openWeatherSlot) Condition {
	if len(s.Weather) == 0 {
		return ConditionClear
	}
	return mapOpenWeatherID(s.Weather[0].ID)
}
