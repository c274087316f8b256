package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gowa-gateway/config"
	"gowa-gateway/internal/handler"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/wa"
	"gowa-gateway/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func main() {
	// Missing .env is fine; production sets the environment directly.
	_ = godotenv.Load()

	v := config.NewViper()
	cfg := config.Load(v)
	log := newLogger(cfg)

	if err := os.MkdirAll(cfg.SessionsPath, 0o700); err != nil {
		log.Fatal().Err(err).Str("path", cfg.SessionsPath).Msg("Failed to create sessions path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if _, err := wa.ApplyVersion(ctx, wa.VersionConfig{
		Pin:       cfg.WebVersion,
		CacheType: cfg.WebVersionCacheType,
		Dir:       cfg.SessionsPath,
	}, log); err != nil {
		log.Warn().Err(err).Msg("Failed to resolve protocol version, using built-in")
	}
	cancel()

	hub := ws.NewHub(log)

	var sinks []service.Sink
	var webhook *service.WebhookSink
	if cfg.EnableWebhook {
		webhook = service.NewWebhookSink(service.WebhookOptions{
			BaseURL: cfg.BaseWebhookURL,
			Secret:  cfg.WebhookSecret,
			APIKey:  cfg.APIKey,
			Store:   v,
			Log:     log,
		})
		sinks = append(sinks, webhook)
	}
	if cfg.EnableWebsocket {
		sinks = append(sinks, hub)
	}

	bridge := service.NewBridge(service.BridgeOptions{
		Gate:              service.NewEventGate(service.ParseDisabledCallbacks(cfg.DisabledCallbacks)),
		Sinks:             sinks,
		MaxAttachmentSize: cfg.MaxAttachmentSize,
		SetMessagesAsSeen: cfg.SetMessagesAsSeen,
		RecoverSessions:   cfg.RecoverSessions,
		BootTime:          time.Now(),
		Log:               log,
	})
	lifecycle := service.NewLifecycle(service.LifecycleOptions{
		SessionsPath: cfg.SessionsPath,
		ReleaseLock:  cfg.ReleaseBrowserLock,
		Headless:     cfg.Headless,
		Factory:      wa.NewClient,
		Bridge:       bridge,
		Channels:     hub,
		Log:          log,
	})

	log.Info().
		Bool("webhook", cfg.EnableWebhook).
		Bool("websocket", cfg.EnableWebsocket).
		Bool("recover_sessions", cfg.RecoverSessions).
		Str("disabled_callbacks", cfg.DisabledCallbacks).
		Msg("Feature flags")

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Second
	}
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(cfg.RateLimitMax) / window.Seconds()),
				Burst:     cfg.RateLimitMax,
				ExpiresIn: 3 * time.Minute,
			},
		),
	}))

	handler.RegisterRoutes(e, handler.RouteOptions{
		Lifecycle:         lifecycle,
		Hub:               hub,
		APIKey:            cfg.APIKey,
		JWTSecret:         cfg.JWTSecret,
		MaxAttachmentSize: cfg.MaxAttachmentSize,
		Log:               log,
	})

	if cfg.AutoStartSessions {
		go func() {
			if err := lifecycle.Restore(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to restore sessions")
			}
		}()
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("sessions_path", cfg.SessionsPath).Msg("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	lifecycle.Shutdown(shutdownCtx)
	if webhook != nil {
		webhook.Wait()
	}
	log.Info().Msg("Bye")
}
