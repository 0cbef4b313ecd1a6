// Package httpapi exposes the thin HTTP surface over the cache
// coordinators. Handlers only translate coordinator results; all policy
// lives below.
package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/cache"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/lifts"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/weather"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, weatherCoord *cache.Coordinator[weather.Payload], liftCoord *cache.Coordinator[lifts.Payload]) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		r, err := weatherCoord.Get(c.UserContext())
		if err != nil {
			return exhaustedError(err)
		}
		return c.JSON(r)
	})

	v1.Get("/lifts", func(c *fiber.Ctx) error {
		r, err := liftCoord.Get(c.UserContext())
		if err != nil {
			return exhaustedError(err)
		}
		return c.JSON(r)
	})

	v1.Get("/cache/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"subjects": []cache.Status{
				weatherCoord.Status(),
				liftCoord.Status(),
			},
		})
	})
}

// exhaustedError maps the one surfaced error type. A caller only ever sees
// it on first-ever-run failure or total infrastructure outage; anything
// cached, however stale, is preferred and returned as data.
func exhaustedError(err error) error {
	var exhausted *provider.ExhaustedError
	if errors.As(err, &exhausted) {
		return fiber.NewError(fiber.StatusServiceUnavailable, exhausted.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
