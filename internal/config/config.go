package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/weather"
)

// AppConfig is the full externally supplied configuration surface. Nothing
// here is hardcoded into the core logic; the defaults below describe the
// reference deployment (Nozawa Onsen, single instance, SQLite).
type AppConfig struct {
	Port     string `validate:"required"`
	LogLevel string

	// Outbound HTTP and per-provider fetch bounds.
	HTTPTimeout     time.Duration `validate:"gt=0"`
	ProviderTimeout time.Duration `validate:"gt=0"`

	// Freshness TTL applied uniformly to the memory and persistent tiers.
	TTL time.Duration `validate:"gt=0"`

	// Refresh policy.
	MinRefreshInterval time.Duration `validate:"gt=0"`
	SeasonStart        string        `validate:"required"`
	SeasonEnd          string        `validate:"required"`
	RefreshCrons       []string      `validate:"min=1"`
	Timezone           string        `validate:"required"`

	// Weather providers. The primary (OpenWeatherMap) is enabled by its
	// key; Open-Meteo needs none.
	OpenWeatherAPIKey string

	// Lift-status sources.
	LiftFeedURL string
	LiftPageURL string

	// Snapshot store backend.
	StoreBackend  string `validate:"oneof=sqlite redis"`
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Resort geometry.
	Bands []weather.Band `validate:"min=2"`

	// Snow-line classification thresholds.
	SnowPolicy weather.SnowPolicy
}

var validate = validator.New()

// defaultBands is the reference resort's elevation geometry.
func defaultBands() []weather.Band {
	return []weather.Band{
		{Name: "village", AltitudeM: 565, Lat: 36.9223, Lon: 138.4408},
		{Name: "mid", AltitudeM: 1220, Lat: 36.9086, Lon: 138.4559},
		{Name: "summit", AltitudeM: 1650, Lat: 36.8990, Lon: 138.4702},
	}
}

// Load reads configuration from environment with reference defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		LiftFeedURL:       os.Getenv("LIFT_FEED_URL"),
		LiftPageURL:       os.Getenv("LIFT_STATUS_PAGE_URL"),
		StoreBackend:      getenvDefault("SNAPSHOT_STORE", "sqlite"),
		SQLitePath:        getenvDefault("SQLITE_PATH", "snapshots.db"),
		RedisAddr:         getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getenvInt("REDIS_DB", 0),
		SeasonStart:       getenvDefault("SEASON_START", "12-01"),
		SeasonEnd:         getenvDefault("SEASON_END", "04-30"),
		Timezone:          getenvDefault("RESORT_TIMEZONE", "Asia/Tokyo"),
		Bands:             defaultBands(),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.TTL, err = getenvDuration("CACHE_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.MinRefreshInterval, err = getenvDuration("MIN_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	// Dense near dawn (first lifts, grooming reports), hourly midday, one
	// final evening trigger.
	crons := getenvDefault("REFRESH_CRONS", "*/15 5-9 * * *;0 10-16 * * *;0 21 * * *")
	for _, expr := range strings.Split(crons, ";") {
		if expr = strings.TrimSpace(expr); expr != "" {
			cfg.RefreshCrons = append(cfg.RefreshCrons, expr)
		}
	}

	cfg.SnowPolicy = weather.SnowPolicy{
		VillageSnowMaxC: getenvFloat("SNOW_VILLAGE_MAX_C", 1.5),
		SummitSnowMaxC:  getenvFloat("SNOW_SUMMIT_MAX_C", 1.5),
		SummitMixedMaxC: getenvFloat("SNOW_MIXED_MAX_C", 3.5),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MidAltitudeM returns the mid-station altitude used as the default snow
// line when no freeze level is reported.
func (c *AppConfig) MidAltitudeM() int {
	for _, b := range c.Bands {
		if b.Name == "mid" {
			return b.AltitudeM
		}
	}
	return c.Bands[len(c.Bands)/2].AltitudeM
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
