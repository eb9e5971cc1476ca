package server

import (
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Options struct {
	// UploadDir is served under /uploads for local storage.
	UploadDir string
	// RateLimit enables the auth endpoint limiters.
	RateLimit bool
	// AccessLog enables Fiber's request logger.
	AccessLog bool
}

func New(db *gorm.DB, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    20 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	obs.Init()

	if opts.UploadDir != "" {
		app.Static("/uploads", opts.UploadDir, fiber.Static{
			Compress:  true,
			ByteRange: true,
			Browse:    false,
			MaxAge:    3600,
		})
	}

	SetupRoutes(app, opts)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return response.Error(c, fe.Code, "HTTP_ERROR", fe.Message, nil)
	}
	obs.Log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
	return response.InternalError(c, "Internal server error")
}
