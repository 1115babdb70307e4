package ors

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Geocoder interface {
	Geocode(ctx context.Context, text string) (Place, error)
}

func RegisterRoutes(r fiber.Router, geocoder Geocoder) {
	r.Post("/geocode", func(c *fiber.Ctx) error {
		var body struct {
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Address) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "address required")
		}
		place, err := geocoder.Geocode(c.Context(), body.Address)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(place)
	})
}
