package traveltime

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/listings/:id/travel-times", func(c *fiber.Ctx) error {
		views, err := svc.ForListing(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(views)
	})

	r.Post("/listings/:id/travel-times", func(c *fiber.Ctx) error {
		var body struct {
			ReferenceAddressID string `json:"reference_address_id"`
			Minutes            *int   `json:"minutes"`
		}
		if err := c.BodyParser(&body); err != nil || body.ReferenceAddressID == "" || body.Minutes == nil {
			return fiber.NewError(fiber.StatusBadRequest, "reference_address_id and minutes required")
		}
		view, err := svc.Add(c.Context(), c.Params("id"), body.ReferenceAddressID, *body.Minutes, true)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	})

	r.Put("/travel-times/:id", func(c *fiber.Ctx) error {
		var body struct {
			Minutes  *int  `json:"minutes"`
			IsManual *bool `json:"is_manual"`
		}
		if err := c.BodyParser(&body); err != nil || body.Minutes == nil {
			return fiber.NewError(fiber.StatusBadRequest, "minutes required")
		}
		manual := true
		if body.IsManual != nil {
			manual = *body.IsManual
		}
		if err := svc.Update(c.Context(), c.Params("id"), *body.Minutes, manual); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/api/travel-time", func(c *fiber.Ctx) error {
		var body struct {
			ListingID string `json:"listingId"`
			AddressID string `json:"addressId"`
		}
		if err := c.BodyParser(&body); err != nil || body.ListingID == "" || body.AddressID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "listingId and addressId required")
		}
		view, err := svc.Compute(c.Context(), body.ListingID, body.AddressID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"travelTime": view.Minutes, "travel_time": view})
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidMinutes):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingCoordinates), errors.Is(err, ErrNotCalculable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrProvider):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
