package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/iserve-be/internal/api"
	"github.com/isdelr/iserve-be/internal/auth"
	"github.com/isdelr/iserve-be/internal/config"
	"github.com/isdelr/iserve-be/internal/database"
	"github.com/isdelr/iserve-be/internal/logger"
	"github.com/isdelr/iserve-be/internal/mail"
	"github.com/isdelr/iserve-be/internal/metrics"
	"github.com/isdelr/iserve-be/internal/monitoring"
	"github.com/isdelr/iserve-be/internal/repository"
	"github.com/isdelr/iserve-be/internal/services"
	"github.com/isdelr/iserve-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}
	if cfg.TokenTTL == 0 {
		log.Warn().Msg("TOKEN_TTL is 0: issued tokens never expire")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(repository.NewEventRepository(db), hub)
	userService := services.NewUserService(services.UserServiceOptions{
		Users:       repository.NewUserRepository(db),
		Hasher:      auth.NewHasher(cfg.BcryptCost),
		Tokens:      tokens,
		Events:      eventService,
		Metrics:     recorder,
		CountryCode: cfg.ContactCountryCode,
	})

	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		log.Warn().Msg("SMTP_HOST is not set: feedback email is disabled")
	}
	feedbackService := services.NewFeedbackService(mailer, cfg.FeedbackFrom, cfg.FeedbackTo, recorder)

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(eventService, cfg.EventPruneSchedule, cfg.EventRetention)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	scheduler.Run()

	// Set up router
	router := api.NewRouter(api.RouterConfig{
		Hub:             hub,
		Tokens:          tokens,
		UserService:     userService,
		EventService:    eventService,
		FeedbackService: feedbackService,
		Metrics:         metrics.Handler(reg),
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		SecureCookies:   cfg.IsProduction(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}
