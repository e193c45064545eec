package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"task-tracker/api"
	"task-tracker/config"
	"task-tracker/tracker"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx := context.Background()
	kv, closeStore, err := cfg.OpenStore(ctx, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.WithError(err).Warn("close storage")
		}
	}()

	tr := tracker.New(ctx, kv,
		tracker.WithLogger(logger),
		tracker.WithStorageTimeout(cfg.StorageTimeout),
	)
	dash := api.NewDashboard(tr)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding, echo.HeaderXRequestID},
	}))
	e.Use(api.RequestID(), api.GzipRequestBody())

	api.Register(e, tr, dash, logger)

	if err := e.Start(cfg.ListenAddr()); err != nil {
		logger.WithError(err).Error("server stopped")
	}
}
