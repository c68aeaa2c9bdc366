package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/config"
	"github.com/iliyamo/api-starter/internal/database"
	"github.com/iliyamo/api-starter/internal/handler"
	"github.com/iliyamo/api-starter/internal/logger"
	"github.com/iliyamo/api-starter/internal/middleware"
	"github.com/iliyamo/api-starter/internal/queue"
	"github.com/iliyamo/api-starter/internal/repository"
	"github.com/iliyamo/api-starter/internal/router"
)

// userStore is what both repository implementations provide.
type userStore interface {
	auth.UserStore
	handler.UserDirectory
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()
	lg := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// closed in reverse order once the HTTP server has drained
	var closers []func() error

	var store userStore
	switch cfg.DB.Driver {
	case "memory":
		lg.Warn("using in-memory user store; data is lost on restart")
		store = repository.NewMemoryUserRepo()
	default:
		db := mustOpenDB(ctx, cfg.DB, lg)
		closers = append(closers, db.Close)
		store = repository.NewUserRepo(db)
	}

	// Redis is optional: without it the limiter is a pass-through.
	rlCfg := config.LoadRateLimitConfig()
	var scripter redis.Scripter
	if rlCfg.Enabled {
		rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
		if err != nil {
			lg.Warn("redis unavailable, rate limiting disabled", "err", err)
		} else {
			scripter = rdb
			closers = append(closers, rdb.Close)
		}
	}

	var audit handler.AuditPublisher
	if cfg.Audit.Enabled {
		pub := queue.NewPublisher(cfg.Audit.URL, cfg.Audit.Queue, lg)
		audit = pub
		closers = append(closers, pub.Close)
	}
	if cfg.Audit.Consumer {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.Audit, lg); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	tokens := auth.NewTokenIssuer(cfg.JWT, nil)
	sessions := auth.NewSessionService(store, tokens, cfg.BcryptCost, lg)
	guard := middleware.NewGuard(tokens, store)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(lg)
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg))
	e.Use(echomw.Recover())

	router.Register(e, cfg.APIPrefix, guard, middleware.NewTokenBucket(rlCfg, scripter, lg), router.Handlers{
		Auth: handler.NewAuthHandler(sessions, audit, handler.CookieOptions{
			Path:   cfg.APIPrefix + "/auth/refresh",
			Secure: cfg.IsProduction(),
		}, lg),
		Users: handler.NewUsersHandler(store, sessions),
	})

	go func() {
		addr := ":" + cfg.Port
		lg.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DB.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"server": func(ctx context.Context) error {
			err := e.Shutdown(ctx)
			cancel()
			for i := len(closers) - 1; i >= 0; i-- {
				err = errors.Join(err, closers[i]())
			}
			return err
		},
	})
	code := <-wait
	lg.Info("shutdown complete", "code", code)
	os.Exit(code)
}

func mustOpenDB(ctx context.Context, cfg config.DBConfig, lg *slog.Logger) *sql.DB {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		lg.Error("connect mysql", "err", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db); err != nil {
		lg.Error("migrate", "err", err)
		os.Exit(1)
	}
	return db
}
