package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"smartbite-api/campay"
	"smartbite-api/config"
	"smartbite-api/handlers"
	"smartbite-api/logger"
	"smartbite-api/middleware"
	"smartbite-api/notify"
	"smartbite-api/orders"
	"smartbite-api/payments"
	"smartbite-api/routes"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFile)
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := config.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}
	if err := config.SeedAdmin(ctx, db, cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to seed admin user")
	}

	var sinks []notify.Sink
	if cfg.RabbitMQURL != "" {
		sink, err := notify.DialAMQP(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, events stay local")
		} else {
			defer sink.Close()
			sinks = append(sinks, sink)
			logrus.WithField("exchange", cfg.EventsExchange).Info("Publishing events to RabbitMQ")
		}
	}
	hub := notify.NewHub(cfg.NotifyBuffer, sinks...)
	go hub.Run(ctx)

	api := &handlers.API{
		DB:       db,
		Orders:   orders.NewService(db, hub),
		Payments: payments.NewService(db, campay.NewClient(cfg.CamPay), hub, cfg.CamPay.Currency),
		Hub:      hub,
		Identity: middleware.NewIdentity(cfg.JWTSecret, cfg.TokenTTL),
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"service":         "SmartBite API",
			"dropped_events":  hub.Dropped(),
			"payment_gateway": cfg.CamPay.Env,
		})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the SmartBite API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []string{"customer", "owner", "agent", "admin"},
		})
	})

	routes.SetupRoutes(r, api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.Port).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
