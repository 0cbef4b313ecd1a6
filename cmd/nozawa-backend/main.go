package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpapi "github.com/Gavlarad/nozawa-backend-sub001/internal/api/http"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/cache"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/config"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/lifts"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/metrics"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/scheduler"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/store"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.LogLevel)

	zone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Timezone).Msg("invalid resort timezone")
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	snapshots, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	defer snapshots.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// Weather: OpenWeatherMap primary (key-gated), Open-Meteo secondary.
	weatherChain := provider.NewChain[weather.Payload](
		"nozawa:weather",
		cfg.ProviderTimeout,
		log,
		weather.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Bands, zone),
		weather.NewOpenMeteoProvider(httpClient, cfg.Bands, zone),
	)
	weatherCoord := cache.New(
		"nozawa:weather",
		cfg.TTL,
		weatherChain,
		snapshots,
		weather.Enrich(cfg.SnowPolicy, cfg.MidAltitudeM()),
		m,
		log,
	)

	// Lifts: official feed primary, status-page scrape secondary.
	liftChain := provider.NewChain[lifts.Payload](
		"nozawa:lifts",
		cfg.ProviderTimeout,
		log,
		lifts.NewFeedProvider(httpClient, cfg.LiftFeedURL),
		lifts.NewScrapeProvider(httpClient, cfg.LiftPageURL),
	)
	liftCoord := cache.New(
		"nozawa:lifts",
		cfg.TTL,
		liftChain,
		snapshots,
		lifts.Enrich,
		m,
		log,
	)

	seasonStart, err := scheduler.ParseMonthDay(cfg.SeasonStart)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SEASON_START")
	}
	seasonEnd, err := scheduler.ParseMonthDay(cfg.SeasonEnd)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SEASON_END")
	}

	sched := scheduler.New(scheduler.Config{
		CronWindows:     cfg.RefreshCrons,
		MinimumInterval: cfg.MinRefreshInterval,
		Season:          scheduler.SeasonWindow{Start: seasonStart, End: seasonEnd},
		Zone:            zone,
		RefreshTimeout:  2 * cfg.ProviderTimeout,
	}, []scheduler.Target{weatherCoord, liftCoord}, m, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "nozawa-backend",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "nozawa-backend",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, weatherCoord, liftCoord)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func openStore(cfg *config.AppConfig) (store.SnapshotStore, error) {
	if cfg.StoreBackend == "redis" {
		return store.NewRedis(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), nil
	}
	return store.NewSQLite(cfg.SQLitePath)
}
