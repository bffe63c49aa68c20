package router

import (
	stderrors "errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"societyhub/internal/auth"
	"societyhub/internal/handler"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/service"
)

// Options carries the router dependencies that are not handlers.
type Options struct {
	JWT *auth.JWTService
	Log *logger.Logger
	// MediaDir, when set, is served under /media for the local uploader.
	MediaDir string
	// Ready reports whether backing stores respond; nil means always ready.
	Ready func() error
	// DevRoutes exposes /dev/seed and /dev/token.
	DevRoutes bool
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	opts Options,
	listingHandler *handler.ListingHandler,
	complaintHandler *handler.ComplaintHandler,
	billHandler *handler.BillHandler,
	moderationHandler *handler.ModerationHandler,
	gateHandler *handler.GateHandler,
	userHandler *handler.UserHandler,
	authHandler *handler.AuthHandler,
	seedHandler *handler.SeedHandler,
	activityHandler *handler.ActivityHandler,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	e.Validator = &CustomValidator{validator: service.NewValidator()}
	e.HTTPErrorHandler = ErrorHandler(e, opts.Log)

	e.GET("/healthz", func(c echo.Context) error {
		if opts.Ready != nil {
			if err := opts.Ready(); err != nil {
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if opts.MediaDir != "" {
		e.Static("/media", opts.MediaDir)
	}

	if opts.DevRoutes {
		dev := e.Group("/api/dev")
		dev.POST("/seed", seedHandler.SeedProfiles)
		dev.POST("/token", authHandler.Token)
	}

	api := e.Group("/api", opts.JWT.Middleware())

	// Listings
	api.POST("/listings", listingHandler.Create)
	api.GET("/listings", listingHandler.Public)
	api.GET("/listings/mine", listingHandler.Mine)
	api.GET("/listings/pending", listingHandler.Pending)
	api.GET("/listings/:id", listingHandler.Get)
	api.GET("/listings/:id/activity", activityHandler.History(model.KindListing))

	// Complaints
	api.POST("/complaints", complaintHandler.Create)
	api.GET("/complaints/mine", complaintHandler.Mine)
	api.GET("/complaints/pending", complaintHandler.Pending)
	api.POST("/complaints/:id/resolve", complaintHandler.Resolve)
	api.GET("/complaints/:id/activity", activityHandler.History(model.KindComplaint))

	// Bills
	api.POST("/bills", billHandler.Issue)
	api.GET("/bills/mine", billHandler.Mine)
	api.GET("/bills/house/:house", billHandler.ListForHouse)
	api.POST("/bills/:id/pay", billHandler.Pay)
	api.GET("/bills/:id/activity", activityHandler.History(model.KindBill))

	// Moderation
	api.POST("/moderation/:kind/:id/approve", moderationHandler.Approve)
	api.POST("/moderation/:kind/:id/reject", moderationHandler.Reject)

	// Gate
	gate := api.Group("/gate")
	gate.POST("/entries", gateHandler.RecordEntry)
	gate.POST("/entries/:id/exit", gateHandler.RecordExit)
	gate.GET("/entries/:id/activity", activityHandler.History(model.KindGateLog))
	gate.GET("/active", gateHandler.Active)
	gate.GET("/by-house", gateHandler.ByHouse)
	gate.GET("/stats/today", gateHandler.Today)
	gate.GET("/stats/daily", gateHandler.Daily)
	gate.GET("/stream", gateHandler.Stream)

	// Users
	users := api.Group("/users")
	users.GET("", userHandler.ListUsers)
	users.POST("", userHandler.CreateProfile)
	users.GET("/stats", userHandler.Stats)
	users.GET("/stream", userHandler.StreamStats)
}

// ErrorHandler reports server errors to Sentry and then renders them with
// echo's default handler.
func ErrorHandler(e *echo.Echo, log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if stderrors.As(err, &he) {
			status = he.Code
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
			if hub := sentry.CurrentHub(); hub.Client() != nil {
				hub.Clone().CaptureException(err)
			}
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface. Failures are returned as a
// ValidationError listing every field.
func (cv *CustomValidator) Validate(i interface{}) error {
	return service.ValidateStruct(cv.validator, i)
}
