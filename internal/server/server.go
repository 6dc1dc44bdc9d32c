// Package server exposes the HTTP API. Authentication is a bearer access
// token; authorization happens in the domain packages, the server only maps
// domain errors to status codes.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/auth"
	"github.com/itc-hub/sitecontrol/internal/storage"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB      *gorm.DB
	Auth    *auth.Service
	Storage *storage.Client // nil disables the media endpoints
	Port    int
	Out     io.Writer
}

// deps is the handler dependency bundle threaded through route registration.
type deps struct {
	db      *gorm.DB
	auth    *auth.Service
	storage *storage.Client
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Auth == nil {
		return fmt.Errorf("server: auth service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, deps{db: opts.DB, auth: opts.Auth, storage: opts.Storage})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
