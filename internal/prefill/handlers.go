package prefill

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type PageReader interface {
	Extract(ctx context.Context, pageURL string) (Suggestion, error)
}

func RegisterRoutes(r fiber.Router, reader PageReader) {
	r.Post("/prefill", func(c *fiber.Ctx) error {
		var body struct {
			URL string `json:"url"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.URL) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "url required")
		}
		s, err := reader.Extract(c.Context(), body.URL)
		switch {
		case errors.Is(err, ErrUnsupportedURL):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrFetch):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(s)
	})
}
