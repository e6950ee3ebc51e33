package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	rd "github.com/redis/go-redis/v9"

	"github.com/vendalive/fulfillment/internal/config"
	"github.com/vendalive/fulfillment/internal/db"
	"github.com/vendalive/fulfillment/internal/es"
	"github.com/vendalive/fulfillment/internal/httpserver"
	"github.com/vendalive/fulfillment/internal/logging"
	"github.com/vendalive/fulfillment/internal/mykafka"
	"github.com/vendalive/fulfillment/internal/repo"
	"github.com/vendalive/fulfillment/internal/service/fulfillment"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	database, err := db.Open(context.Background(), configuration)
	if err != nil {
		logger.Error("db init failed", "error", err)
		os.Exit(1)
	}

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	svc := &fulfillment.Service{
		DB:     database,
		Repo:   &repo.GormRepo{DB: database},
		Events: prod,
		Log:    logger,
	}

	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			logger.Error("es init failed", "error", err)
			os.Exit(1)
		}
		svc.Audit = &es.AuditIndexer{Client: esClient, Index: "status_history", Log: logger}
	}

	if configuration.REDIS_ADDR != "" {
		svc.RDB = rd.NewClient(&rd.Options{Addr: configuration.REDIS_ADDR})
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		OrderHandler:   &httpserver.OrderHandler{Service: svc},
		PackingHandler: &httpserver.PackingHandler{Service: svc},
		JWTSecret:      []byte(configuration.JWT_SECRET),
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
