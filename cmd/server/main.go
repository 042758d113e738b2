package main

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/revline/identity-engine/internal/cache"
	"github.com/revline/identity-engine/internal/config"
	"github.com/revline/identity-engine/internal/database"
	"github.com/revline/identity-engine/internal/engine"
	"github.com/revline/identity-engine/internal/handler"
	"github.com/revline/identity-engine/internal/logger"
	"github.com/revline/identity-engine/internal/middleware"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/notifier"
	"github.com/revline/identity-engine/internal/project"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/router"
	"github.com/revline/identity-engine/internal/token"
	"github.com/revline/identity-engine/internal/twofactor"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// Raw stores and their caching decorators. Credential paths use the raw
	// user store because cached users carry no password hash.
	userRepo := repository.NewUserRepo(db)
	projectRepo := repository.NewProjectRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	users := cache.NewUserCache(userRepo, rdb, cfg.CacheTTL)
	projects := cache.NewProjectCache(projectRepo, rdb, cfg.CacheTTL)
	sessions := cache.NewSessionCache(sessionRepo, rdb, cfg.CacheTTL)

	if cfg.BootstrapDefaultProj {
		if err := bootstrapDefaultProject(cfg, projectRepo); err != nil {
			log.Fatal().Err(err).Msg("default project bootstrap failed")
		}
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, sessions, log)
	resolver := project.NewResolver(projects, cfg.ClientIDHeader, cfg.ClientSecretHeader,
		cfg.DefaultClientID, cfg.DefaultClientSecret)

	twoFactor := twofactor.NewRedisStore(rdb, cfg.TwoFactorTTL)
	sender := notifier.NewAMQPPublisher(cfg.AmqpURL, cfg.NotifyQueue, log)

	eng := engine.New(userRepo, users, tokens, twoFactor, sender, nil,
		cfg.BcryptCost, cfg.EmailVerification, cfg.DefaultLocale, log)

	guard := middleware.NewGuard(resolver, tokens, users, sessions,
		cfg.AdminSecretHeader, cfg.AdminSecret, cfg.AdminEmail,
		cfg.AdminRoleSet(), cfg.ManagerRoleSet(),
		cfg.LocaleSupported, cfg.DefaultLocale, nil, log)

	// In local deployments nothing consumes the notify queue, so drain it
	// into the log to keep sign-up flows observable end to end.
	if cfg.Env == "local" {
		go func() {
			if err := notifier.StartConsumer(cfg.AmqpURL, cfg.NotifyQueue, log,
				notifier.LogDelivery(log)); err != nil {
				log.Error().Err(err).Msg("notify consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = router.ErrorHandler(log)
	e.Use(echomw.Recover())

	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	router.Register(e, guard, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, eng, users),
		Profile: handler.NewProfileHandler(eng),
		Project: handler.NewProjectHandler(projects),
		Admin:   handler.NewAdminHandler(eng),
		Health:  handler.Health(db, rdb),
	}, rl)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// bootstrapDefaultProject makes sure the fallback tenant exists so that
// requests without a client id header have somewhere to land.
func bootstrapDefaultProject(cfg *config.Config, projects repository.ProjectStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := projects.GetByClientID(ctx, cfg.DefaultClientID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return projects.Create(ctx, &model.Project{
		Name:         cfg.DefaultProjectName,
		ClientID:     cfg.DefaultClientID,
		ClientSecret: cfg.DefaultClientSecret,
		Public:       false,
	})
}
