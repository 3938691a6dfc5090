package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/auth"
	"github.com/ehr/careinsights/internal/platform/db"
	"github.com/ehr/careinsights/internal/platform/metrics"
	"github.com/ehr/careinsights/internal/platform/middleware"
	"github.com/ehr/careinsights/internal/platform/reporting"
)

const version = "0.1.0"

// newServer assembles the HTTP surface around a's engine and source.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(a.cfg.SnapshotTTL))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.SchemaHeader},
	}))
	e.Use(middleware.RequestTimeout(a.cfg.ReportTimeout, "/health", "/metrics"))

	// Auth middleware
	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     a.cfg.AuthIssuer,
			Audience:   a.cfg.AuthAudience,
			SigningKey: []byte(a.cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"source":  string(a.kind),
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool, a.cfg.DBSchema, snapshot.Tables))
	}
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	if a.kind == snapshot.KindPostgres {
		apiV1.Use(db.SchemaMiddleware(a.cfg.DBSchema))
	}

	cache := reporting.NewSnapshotCache(a.source, string(a.kind), a.cfg.SnapshotTTL, a.cfg.SnapshotLoad)
	reporting.NewHandler(a.engine, cache, a.logger).RegisterRoutes(apiV1)

	return e
}

func runServer(ctx context.Context, a *app) error {
	e := newServer(a)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Str("source", string(a.kind)).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
