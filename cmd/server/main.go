package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/coursehub/lms-admin-session/internal/auth"
	"github.com/coursehub/lms-admin-session/internal/config"
	"github.com/coursehub/lms-admin-session/internal/database"
	"github.com/coursehub/lms-admin-session/internal/handler"
	"github.com/coursehub/lms-admin-session/internal/jobs"
	"github.com/coursehub/lms-admin-session/internal/logging"
	"github.com/coursehub/lms-admin-session/internal/middleware"
	"github.com/coursehub/lms-admin-session/internal/queue"
	"github.com/coursehub/lms-admin-session/internal/repository"
	"github.com/coursehub/lms-admin-session/internal/router"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := auth.LoadRegistryFile(cfg.RegistryPath, cfg.BcryptCost, logger)
	if err != nil {
		logger.Error("load super-admin registry", "path", cfg.RegistryPath, "error", err)
		os.Exit(1)
	}
	logger.Info("super-admin registry loaded", "entries", registry.Len())

	var (
		db       *sql.DB
		sessions interface {
			auth.SessionStore
			jobs.ExpiredSessionStore
		}
		profiles auth.ProfileStore
	)
	switch cfg.Store {
	case config.StoreMySQL:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			logger.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			logger.Error("migrate database", "error", err)
			os.Exit(1)
		}
		sessions = repository.NewSessionRepo(db)
		profiles = repository.NewProfileRepo(db)
	case config.StoreMemory:
		logger.Warn("using in-memory session store; sessions are lost on restart")
		sessions = repository.NewMemorySessionRepo()
		profiles = repository.NewMemoryProfileRepo()
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	switch {
	case err != nil:
		logger.Warn("redis unavailable; login rate limiting disabled", "error", err)
	case rdb == nil:
		logger.Info("redis disabled; login rate limiting off")
	default:
		defer rdb.Close()
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		amqpPub := queue.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
		defer amqpPub.Close()
		publisher = amqpPub
	}
	events := queue.NewDispatcher(publisher, cfg.Events.BufferSize, logger)

	svc := auth.NewService(registry, sessions, profiles, events, cfg.SessionTTL, logger)

	jobs.StartSessionReaper(ctx, cfg.Reaper, &jobs.SessionReaper{
		Store:  sessions,
		Events: events,
		Log:    logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	ready := &handler.ReadyHandler{Redis: rdb}
	if db != nil {
		ready.DB = db
	}
	router.RegisterRoutes(e, ready)
	router.RegisterAdmin(e,
		handler.NewAdminHandler(svc, logger),
		handler.NewProfileHandler(svc, logger),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store, "session_ttl", svc.TTL())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.Events.Enabled {
		g.Go(func() error {
			err := queue.StartSessionEventConsumer(gctx, cfg.Events.URL, cfg.Events.Queue, cfg.Events.AuditLog, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	events.Close()
	logger.Info("session events flushed", "dropped", events.Dropped(), "failed", events.Failed())
	if err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
