package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/devclub/orgsite/internal/config"
	"github.com/devclub/orgsite/internal/db"
	authhdl "github.com/devclub/orgsite/internal/handlers/auth"
	"github.com/devclub/orgsite/internal/logging"
	"github.com/devclub/orgsite/internal/middleware/csrf"
	loggingmw "github.com/devclub/orgsite/internal/middleware/logging"
	"github.com/devclub/orgsite/internal/mykafka"
	"github.com/devclub/orgsite/internal/repo"
	"github.com/devclub/orgsite/internal/service"
	"github.com/devclub/orgsite/internal/tokens"
	httpserver "github.com/devclub/orgsite/internal/transport/http"
)

type eventProducer interface {
	service.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DSN())
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var prod eventProducer = mykafka.NopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal(err)
		}
		prod = p
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	gormRepo := repo.NewGormRepo(gdb)
	issuer := tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)

	authHandler := &authhdl.AuthHandler{
		Svc: &service.AuthService{
			Users:      gormRepo,
			Sessions:   gormRepo,
			Tokens:     issuer,
			RefreshTTL: cfg.RefreshTokenTTL,
			BcryptCost: cfg.BcryptCost,
			Events:     prod,
			EventTopic: cfg.KafkaTopic,
		},
		Cookies: authhdl.CookieConfig{
			Secure:      cfg.CookieSecure,
			SameSite:    cfg.CookieSameSite,
			Domain:      cfg.CookieDomain,
			RefreshPath: cfg.RefreshCookiePath,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.Secure())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		DB:          gdb,
		AuthHandler: authHandler,
		Tokens:      issuer,
		CSRF: csrf.Config{
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: cfg.CookieSameSite,
		},
	})

	go func() {
		logger.Info("http_server_start", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown", "error", err)
	}
	if err := prod.Close(); err != nil {
		logger.Error("kafka_close", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close", "error", err)
	}
	logger.Info("http_server_stopped")
}
