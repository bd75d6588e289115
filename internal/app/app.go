// Package app wires configuration, storage and services into one value
// that the server entry point and the integration tests share.
package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/config"
	"github.com/iliyamo/cinema-festival/internal/handler"
	"github.com/iliyamo/cinema-festival/internal/middleware"
	"github.com/iliyamo/cinema-festival/internal/queue"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/router"
	"github.com/iliyamo/cinema-festival/internal/scheduler"
	"github.com/iliyamo/cinema-festival/internal/service"
	"github.com/iliyamo/cinema-festival/internal/utils"
)

type App struct {
	Config *config.Config

	DB        *sql.DB
	Redis     *redis.Client
	Logger    *zap.Logger
	Publisher queue.Publisher

	Store *repository.Store
	Roles *service.RoleResolver

	AuthService      *service.AuthService
	UserService      *service.UserService
	ProgramService   *service.ProgramService
	ScreeningService *service.ScreeningService

	Scheduler *scheduler.Scheduler
}

// New builds the application.  rdb may be nil; pub may be nil, in which
// case workflow events are dropped.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client, pub queue.Publisher, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	store := repository.NewStore(db)

	authService := service.NewAuthService(store, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		TTLMin:     cfg.AccessTTLMin,
		BcryptCost: cfg.BcryptCost,
	}, logger.Named("auth"))
	userService := service.NewUserService(store, cfg.BcryptCost, logger.Named("users"))
	programService := service.NewProgramService(store, pub, logger.Named("programs"))
	screeningService := service.NewScreeningService(store, pub, logger.Named("screenings"))

	sched := scheduler.New(scheduler.Config{
		TokenPurge: cfg.TokenPurgeCron,
		AutoReject: cfg.AutoRejectCron,
	}, authService, screeningService, logger)

	return &App{
		Config:           cfg,
		DB:               db,
		Redis:            rdb,
		Logger:           logger,
		Publisher:        pub,
		Store:            store,
		Roles:            service.NewRoleResolver(store),
		AuthService:      authService,
		UserService:      userService,
		ProgramService:   programService,
		ScreeningService: screeningService,
		Scheduler:        sched,
	}
}

// Init seeds the admin account when ADMIN_PASSWORD is set.
func (app *App) Init(ctx context.Context) error {
	cfg := app.Config
	created, err := app.AuthService.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail, cfg.AdminFullName)
	if err != nil {
		return err
	}
	if created {
		app.Logger.Info("admin account seeded", zap.String("username", cfg.AdminUsername))
	}
	return nil
}

// Routes installs the request validator and registers every HTTP
// endpoint on e.
func (app *App) Routes(e *echo.Echo) {
	cfg := app.Config
	e.Validator = utils.NewValidator()
	deps := router.Deps{
		Authn:      app.AuthService,
		RateLimit:  middleware.NewTokenBucket(cfg.RateLimit, app.Redis, app.Logger),
		LoginLimit: middleware.NewTokenBucket(cfg.RateLimit.Login(), app.Redis, app.Logger),
		Cache:      middleware.NewRedisCache(cfg.Cache, app.Redis),
	}

	router.RegisterRoutes(e, app.DB)
	router.RegisterAuth(e, handler.NewAuthHandler(app.AuthService, app.Logger), deps)
	router.RegisterUsers(e, handler.NewUserHandler(app.UserService, app.Logger), deps)
	screenings := handler.NewScreeningHandler(app.ScreeningService, app.Logger)
	router.RegisterPrograms(e, handler.NewProgramHandler(app.ProgramService, app.ScreeningService, app.Roles, app.Logger), screenings, deps)
	router.RegisterScreenings(e, screenings, deps)
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.Redis != nil {
		errs = append(errs, app.Redis.Close())
	}
	errs = append(errs, app.DB.Close())
	return errors.Join(errs...)
}
