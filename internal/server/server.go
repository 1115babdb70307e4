package server

import (
	"errors"

	"backend-flathunt/internal/config"
	"backend-flathunt/internal/db"
	"backend-flathunt/internal/listing"
	"backend-flathunt/internal/logger"
	"backend-flathunt/internal/ors"
	"backend-flathunt/internal/prefill"
	"backend-flathunt/internal/reference"
	"backend-flathunt/internal/stream"
	"backend-flathunt/internal/traveltime"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App         *fiber.App
	Cfg         config.Config
	DB          db.Querier
	Redis       *redis.Client
	Stream      *stream.Hub
	Log         logger.Logger
	Listings    *listing.Service
	References  *reference.Service
	TravelTimes *traveltime.Service
}

func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler(log)})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	hub := stream.NewHub(redisClient, log)
	orsClient := ors.NewClient(cfg.ORSBaseURL, cfg.ORSAPIKey, cfg.ORSTimeout)
	listings := listing.NewService(q, hub)
	references := reference.NewService(q)

	s := &Server{
		App:         app,
		Cfg:         cfg,
		DB:          q,
		Redis:       redisClient,
		Stream:      hub,
		Log:         log,
		Listings:    listings,
		References:  references,
		TravelTimes: traveltime.NewService(q, listings, references, orsClient, log),
	}

	registerRoutes(s, orsClient, prefill.NewExtractor(log, cfg.ORSTimeout))
	return s
}

// Close releases the event relay. The HTTP app is shut down by the caller.
func (s *Server) Close() {
	s.Stream.Close()
}

func registerRoutes(s *Server, geocoder ors.Geocoder, pages prefill.PageReader) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	listing.RegisterRoutes(s.App, s.Listings, s.References, s.TravelTimes)
	traveltime.RegisterRoutes(s.App, s.TravelTimes)

	api := s.App.Group("/api")
	reference.RegisterRoutes(api, s.References)
	ors.RegisterRoutes(api, geocoder)
	prefill.RegisterRoutes(api, pages)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// errorHandler answers every failed request with {"error": message} and
// logs server-side failures once.
func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				logger.String("method", c.Method()),
				logger.String("path", c.Path()),
				logger.Int("status", code),
				logger.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
