package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
)

// OpenMeteoProvider is the secondary (keyless) weather source. Open-Meteo
// emits flat parallel arrays already aligned by hour, and reports times in
// the requested local timezone without an explicit offset, so the
// normalizer attaches the resort's fixed offset to every timestamp.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	bands   []Band
	zone    *time.Location
}

func NewOpenMeteoProvider(client *http.Client, bands []Band, zone *time.Location) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "open-meteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: provider.NewBreaker("open-meteo"),
		bands:   bands,
		zone:    zone,
	}
}

func (p *OpenMeteoProvider) Name() string { return p.name }

// Configured is always true: Open-Meteo needs no credential.
func (p *OpenMeteoProvider) Configured() bool { return true }

func (p *OpenMeteoProvider) Fetch(ctx context.Context) (Payload, error) {
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

func (p *OpenMeteoProvider) fetchBand(ctx context.Context, band Band) (BandReading, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", band.Lat))
	values.Set("longitude", fmt.Sprintf("%f", band.Lon))
	values.Set("elevation", fmt.Sprintf("%d", band.AltitudeM))
	values.Set("current", "temperature_2m,precipitation,snowfall,wind_speed_10m,wind_direction_10m,weather_code,freezing_level_height")
	values.Set("hourly", "temperature_2m,precipitation,snowfall,wind_speed_10m,wind_direction_10m,weather_code")
	values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,snowfall_sum,weather_code")
	values.Set("timezone", "Asia/Tokyo")
	values.Set("past_days", "1")
	values.Set("forecast_days", "7")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return BandReading{}, err
	}

	resp, err := provider.DoRequest(p.client, p.circuit, req)
	if err != nil {
		return BandReading{}, err
	}
	defer resp.Body.Close()

	var raw openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return BandReading{}, fmt.Errorf("%w: %v", provider.ErrMalformedBody, err)
	}

	return normalizeOpenMeteo(raw, band, p.zone)
}

// openMeteoResponse mirrors the provider's parallel-array shape. Numeric
// fields missing from a response decode as nil slices; the normalizer
// defaults them to zero.
type openMeteoResponse struct {
	Current struct {
		Time                string   `json:"time"`
		Temperature2m       float64  `json:"temperature_2m"`
		Precipitation       float64  `json:"precipitation"`
		Snowfall            float64  `json:"snowfall"`
		WindSpeed10m        float64  `json:"wind_speed_10m"`
		WindDirection10m    float64  `json:"wind_direction_10m"`
		WeatherCode         int      `json:"weather_code"`
		FreezingLevelHeight *float64 `json:"freezing_level_height"`
	} `json:"current"`
	Hourly struct {
		Time             []string  `json:"time"`
		Temperature2m    []float64 `json:"temperature_2m"`
		Precipitation    []float64 `json:"precipitation"`
		Snowfall         []float64 `json:"snowfall"`
		WindSpeed10m     []float64 `json:"wind_speed_10m"`
		WindDirection10m []float64 `json:"wind_direction_10m"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		SnowfallSum      []float64 `json:"snowfall_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// normalizeOpenMeteo converts one band response into the canonical model.
// Timestamps are parsed in the resort's fixed zone, never the process-local
// one, and the hourly series is verified monotonic.
func normalizeOpenMeteo(raw openMeteoResponse, band Band, zone *time.Location) (BandReading, error) {
	hourly := HourlySeries{
		Time:             make([]time.Time, 0, len(raw.Hourly.Time)),
		TemperatureC:     make([]float64, 0, len(raw.Hourly.Time)),
		PrecipMM:         make([]float64, 0, len(raw.Hourly.Time)),
		SnowfallCM:       make([]float64, 0, len(raw.Hourly.Time)),
		WindSpeedKmh:     make([]float64, 0, len(raw.Hourly.Time)),
		WindDirectionDeg: make([]float64, 0, len(raw.Hourly.Time)),
		Condition:        make([]Condition, 0, len(raw.Hourly.Time)),
	}

	var prev time.Time
	for i, s := range raw.Hourly.Time {
		t, err := parseLocalTime(s, zone)
		if err != nil {
			return BandReading{}, fmt.Errorf("%w: hourly time %q", provider.ErrMalformedBody, s)
		}
		if i > 0 && !t.After(prev) {
			return BandReading{}, fmt.Errorf("%w: hourly series not monotonic at %q", provider.ErrMalformedBody, s)
		}
		prev = t

		hourly.Time = append(hourly.Time, t)
		hourly.TemperatureC = append(hourly.TemperatureC, floatAt(raw.Hourly.Temperature2m, i))
		hourly.PrecipMM = append(hourly.PrecipMM, floatAt(raw.Hourly.Precipitation, i))
		hourly.SnowfallCM = append(hourly.SnowfallCM, floatAt(raw.Hourly.Snowfall, i))
		hourly.WindSpeedKmh = append(hourly.WindSpeedKmh, floatAt(raw.Hourly.WindSpeed10m, i))
		hourly.WindDirectionDeg = append(hourly.WindDirectionDeg, floatAt(raw.Hourly.WindDirection10m, i))
		hourly.Condition = append(hourly.Condition, mapWMOCode(intAt(raw.Hourly.WeatherCode, i)))
	}

	daily := DailySeries{}
	var prevDay time.Time
	for i, s := range raw.Daily.Time {
		t, err := time.ParseInLocation("2006-01-02", s, zone)
		if err != nil {
			return BandReading{}, fmt.Errorf("%w: daily time %q", provider.ErrMalformedBody, s)
		}
		if i > 0 && !t.After(prevDay) {
			return BandReading{}, fmt.Errorf("%w: daily series not monotonic at %q", provider.ErrMalformedBody, s)
		}
		prevDay = t
		daily.Time = append(daily.Time, t)
		daily.TempMaxC = append(daily.TempMaxC, floatAt(raw.Daily.Temperature2mMax, i))
		daily.TempMinC = append(daily.TempMinC, floatAt(raw.Daily.Temperature2mMin, i))
		daily.PrecipMM = append(daily.PrecipMM, floatAt(raw.Daily.PrecipitationSum, i))
		daily.SnowfallCM = append(daily.SnowfallCM, floatAt(raw.Daily.SnowfallSum, i))
		daily.Condition = append(daily.Condition, mapWMOCode(intAt(raw.Daily.WeatherCode, i)))
	}

	currentTime, err := parseLocalTime(raw.Current.Time, zone)
	if err != nil {
		return BandReading{}, fmt.Errorf("%w: current time %q", provider.ErrMalformedBody, raw.Current.Time)
	}

	current := Current{
		Time:             currentTime,
		TemperatureC:     raw.Current.Temperature2m,
		FeelsLikeC:       WindChill(raw.Current.Temperature2m, raw.Current.WindSpeed10m),
		PrecipMM:         raw.Current.Precipitation,
		SnowfallCM:       raw.Current.Snowfall,
		WindSpeedKmh:     raw.Current.WindSpeed10m,
		WindDirectionDeg: raw.Current.WindDirection10m,
		Condition:        mapWMOCode(raw.Current.WeatherCode),
		FreezingLevelM:   raw.Current.FreezingLevelHeight,
	}

	return BandReading{Band: band, Current: current, Hourly: hourly, Daily: daily}, nil
}

// parseLocalTime parses Open-Meteo's "2006-01-02T15:04" local timestamps in
// the given fixed zone.
func parseLocalTime(s string, zone *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04", s, zone)
}

func floatAt(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func intAt(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}
