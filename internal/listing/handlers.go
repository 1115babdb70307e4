package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-flathunt/internal/reference"
	"backend-flathunt/internal/status"
	"backend-flathunt/internal/traveltime"

	"github.com/gofiber/fiber/v2"
)

type AddressLister interface {
	List(ctx context.Context) ([]reference.Address, error)
}

type TravelTimeLister interface {
	ForListing(ctx context.Context, listingID string) ([]traveltime.View, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, addresses AddressLister, travelTimes TravelTimeLister) {
	r.Get("/listings", func(c *fiber.Ctx) error {
		sortKey := NormalizeSort(c.Query("sort"))
		listings, err := svc.FetchAll(c.Context(), sortKey)
		if err != nil {
			return httpError(err)
		}
		refs, err := addresses.List(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"listings": listings, "reference_addresses": refs, "sort": sortKey})
	})

	r.Post("/listings", func(c *fiber.Ctx) error {
		var req Input
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		created, err := svc.Create(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/listings/:id", func(c *fiber.Ctx) error {
		l, err := svc.FetchOne(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		views, err := travelTimes.ForListing(c.Context(), l.ID)
		if err != nil {
			return httpError(err)
		}
		refs, err := addresses.List(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"listing": l, "travel_times": views, "reference_addresses": refs})
	})

	r.Put("/listings/:id", func(c *fiber.Ctx) error {
		var req Input
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		updated, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(updated)
	})

	r.Delete("/listings/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/listings/:id/vote", func(c *fiber.Ctx) error {
		var body struct {
			Direction string `json:"direction"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var delta int
		switch body.Direction {
		case "up":
			delta = 1
		case "down":
			delta = -1
		default:
			return fiber.NewError(fiber.StatusBadRequest, "direction must be up or down")
		}
		votes, err := svc.AdjustVotes(c.Context(), c.Params("id"), delta)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"votes": votes})
	})

	r.Post("/listings/:id/status", func(c *fiber.Ctx) error {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		st, err := status.ParseEndpoint(body.Status)
		if err != nil {
			return httpError(err)
		}
		if err := svc.SetStatus(c.Context(), c.Params("id"), st); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/listings/:id/comments", func(c *fiber.Ctx) error {
		var body struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		comment, err := svc.AddComment(c.Context(), c.Params("id"), body.Content)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	r.Post("/listings/:id/appointment", func(c *fiber.Ctx) error {
		var body struct {
			Date  string `json:"date"`
			Notes string `json:"notes"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Date) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "date required")
		}
		at, err := ParseAppointmentDate(body.Date, time.Local)
		if err != nil {
			return httpError(err)
		}
		appointment, err := svc.SetAppointment(c.Context(), c.Params("id"), at, body.Notes)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(appointment)
	})

	r.Delete("/listings/:id/appointment", func(c *fiber.Ctx) error {
		if err := svc.CancelAppointment(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Get("/appointments", func(c *fiber.Ctx) error {
		appointments, err := svc.Appointments(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(appointments)
	})

	r.Get("/appointments/calendar", func(c *fiber.Ctx) error {
		loc := time.Local
		if tz := c.Query("tz"); tz != "" {
			l, err := time.LoadLocation(tz)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "unknown time zone")
			}
			loc = l
		}
		appointments, err := svc.Appointments(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(GroupByDay(appointments, loc))
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, status.ErrInvalid),
		errors.Is(err, ErrEmptyComment),
		errors.Is(err, ErrInvalidDelta),
		errors.Is(err, ErrInvalidNumber),
		errors.Is(err, ErrInvalidDate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
