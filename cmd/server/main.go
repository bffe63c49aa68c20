package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"

	_ "societyhub/docs" // swagger docs

	"societyhub/internal/aggregate"
	"societyhub/internal/auth"
	"societyhub/internal/cache"
	"societyhub/internal/clock"
	"societyhub/internal/config"
	"societyhub/internal/db"
	"societyhub/internal/feed"
	"societyhub/internal/handler"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
	"societyhub/internal/router"
	"societyhub/internal/service"
	"societyhub/internal/storage"
)

const statsCacheKey = "societyhub:users:stats"

// @title Society Hub API
// @version 1.0
// @description Housing society listings, complaints, bills, gate logs and user directory.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.App.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.App.Environment,
			Release:          cfg.App.Version,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			log.Warn("sentry init failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	loc, _ := cfg.App.Location()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.NewMySQL(cfg.Database.DSN(), db.Pool{
		MaxOpen:     cfg.Database.MaxOpen,
		MaxIdle:     cfg.Database.MaxIdle,
		MaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}
	if cfg.App.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Warn("drop tables failed", "error", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("auto-migrate failed", "error", err)
	}

	var (
		changes     feed.Feed
		cacheClient *cache.Client
	)
	if cfg.Cache.RedisAddr != "" {
		cacheClient = cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		defer cacheClient.Close()
		if err := cacheClient.Ping(ctx); err != nil {
			log.Fatal("redis unreachable", "addr", cfg.Cache.RedisAddr, "error", err)
		}
		changes = feed.NewRedis(cacheClient, cfg.Cache.FeedPrefix, log)
	} else {
		log.Info("REDIS_ADDR empty, using in-process change feed")
		changes = feed.NewMemory()
	}

	var (
		uploader storage.Uploader
		mediaDir string
	)
	switch cfg.Storage.Mode {
	case "gcs":
		gcs, err := storage.NewGCSUploader(ctx, storage.GCSConfig{
			Bucket:          cfg.Storage.GCSBucket,
			PublicBaseURL:   cfg.Storage.GCSPublicBase,
			CredentialsFile: cfg.Storage.GCSCredentials,
			EmulatorHost:    cfg.Storage.GCSEmulatorHost,
		}, log)
		if err != nil {
			log.Fatal("gcs init failed", "error", err)
		}
		defer gcs.Close()
		uploader = gcs
	default:
		local, err := storage.NewLocalUploader(cfg.Storage.LocalDir, cfg.Storage.LocalPublicURL)
		if err != nil {
			log.Fatal("media dir init failed", "error", err)
		}
		uploader = local
		mediaDir = local.Root()
	}

	clk := clock.Real()

	// Initialize repositories
	listingRepo := repository.New[model.Listing](gormDB, changes, clk, log)
	complaintRepo := repository.New[model.Complaint](gormDB, changes, clk, log)
	billRepo := repository.New[model.Bill](gormDB, changes, clk, log)
	gateRepo := repository.New[model.GateLog](gormDB, changes, clk, log,
		repository.WithImmutable("entry_time", "vehicle_no", "logged_by"))
	userRepos := make(map[model.Role]repository.Repository[model.UserProfile], len(model.Roles))
	for _, role := range model.Roles {
		userRepos[role] = repository.New[model.UserProfile](gormDB, changes, clk, log,
			repository.WithTable(role.Collection()))
	}
	activityRepo := repository.NewActivityLogRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret)
	authz := auth.NewRoleAuthorizer(auth.ParsePolicy(cfg.Auth.Policy))

	// Initialize services
	activity := service.NewActivityLog(activityRepo, clk, log)
	defer activity.Close()

	creationService := service.NewCreationService(listingRepo, complaintRepo, uploader, authz, activity, log)
	moderationService := service.NewModerationService(listingRepo, complaintRepo, billRepo, authz, clk, activity, log)
	billService := service.NewBillService(billRepo, userRepos[model.RoleResident], authz, activity, log)
	listingService := service.NewListingService(listingRepo, authz)
	complaintService := service.NewComplaintService(complaintRepo, authz)
	gateTracker := service.NewGateLogTracker(gateRepo, authz, clk, loc, activity, log)
	userService := service.NewUserService(userRepos, authz, log)
	history := service.NewActivityHistory(activityRepo, authz)

	var (
		statsCache *aggregate.CachePublisher[aggregate.UserDirectoryStats]
		publisher  aggregate.Publisher[aggregate.UserDirectoryStats]
	)
	if cacheClient != nil {
		statsCache = aggregate.NewCachePublisher[aggregate.UserDirectoryStats](cacheClient, statsCacheKey, cfg.Cache.ViewTTL)
		publisher = statsCache
	}
	directory, err := aggregate.NewUserDirectory(ctx, userRepos, publisher, log)
	if err != nil {
		log.Fatal("user directory init failed", "error", err)
	}
	defer directory.Close()

	// Initialize handlers
	listingHandler := handler.NewListingHandler(creationService, listingService)
	complaintHandler := handler.NewComplaintHandler(creationService, complaintService, moderationService)
	billHandler := handler.NewBillHandler(billService, moderationService, authz)
	moderationHandler := handler.NewModerationHandler(moderationService)
	gateHandler := handler.NewGateHandler(gateTracker)
	userHandler := handler.NewUserHandler(userService, directory, statsCache, authz)
	authHandler := handler.NewAuthHandler(userService, jwtService)
	seedHandler := handler.NewSeedHandler(userService)
	activityHandler := handler.NewActivityHandler(history)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(e, router.Options{
		JWT:       jwtService,
		Log:       log,
		MediaDir:  mediaDir,
		DevRoutes: !cfg.App.IsProduction(),
		Ready: func() error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(pingCtx); err != nil {
				return err
			}
			if cacheClient != nil {
				return cacheClient.Ping(pingCtx)
			}
			return nil
		},
	},
		listingHandler,
		complaintHandler,
		billHandler,
		moderationHandler,
		gateHandler,
		userHandler,
		authHandler,
		seedHandler,
		activityHandler,
	)

	swaggerHost := cfg.Server.SwaggerHost
	if swaggerHost == "" {
		swaggerHost = "localhost" + cfg.Server.Address()
	}
	log.Info("swagger documentation available", "url", "http://"+swaggerHost+"/swagger/index.html")

	go func() {
		if err := e.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
