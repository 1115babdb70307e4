package reference

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/reference-addresses", func(c *fiber.Ctx) error {
		addresses, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(addresses)
	})

	r.Post("/reference-addresses", func(c *fiber.Ctx) error {
		var req Address
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		created, err := svc.Create(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "id": created.ID, "reference_address": created})
	})

	r.Put("/reference-addresses/:id", func(c *fiber.Ctx) error {
		var req Address
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.Update(c.Context(), c.Params("id"), req); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Delete("/reference-addresses/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrLimitReached), errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
