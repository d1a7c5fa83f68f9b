package api

import (
	"errors"
	"time"

	"recanalysis/docs"
	"recanalysis/internal/api/handlers"
	"recanalysis/internal/dto"
	"recanalysis/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const welcomeMessage = "Bem-vindo à API do recANALYSIS v1.7!"

type RouterConfig struct {
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func SetupRouter(
	cfg RouterConfig,
	analysisHandler *handlers.AnalysisHandler,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(middleware.RequestLogger(appLogger))

	// importing docs registers the swagger document through init()
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(dto.MessageResponse{Message: welcomeMessage})
	})

	api := app.Group("/api/v1")

	analysis := api.Group("/analysis")
	analysis.Post("", analysisHandler.SubmitAnalysis)
	analysis.Get("/:id/status", analysisHandler.GetStatus)
	analysis.Delete("/:id", analysisHandler.CancelAnalysis)

	api.Post("/generate", analysisHandler.GenerateDocument)
	api.Get("/training-data", analysisHandler.ExportTrainingData)

	return app
}
