package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/vakit/internal/app"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prayer scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

// serve runs until SIGINT or SIGTERM, then stops the HTTP server and the
// scheduler together.
func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, c.cfg, app.Options{Version: version, Logger: c.log})
	if err != nil {
		return err
	}

	handler, err := c.router(a)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, a.Shutdown(shutdownCtx))
	}
	srv := &http.Server{
		Addr:              c.cfg.ServerAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(gctx)
	})
	g.Go(func() error {
		c.log.Info().Str("address", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), a.Shutdown(shutdownCtx))
	})

	err = g.Wait()
	c.log.Info().Msg("stopped")
	return err
}

func (c *cli) router(a *app.App) (http.Handler, error) {
	tmpl, err := LoadTemplates(c.cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		c.log.Warn().Str("dir", c.cfg.TemplatesDir).Msg("no templates found, athan page disabled")
	}

	if c.cfg.LogLevel > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(c.log))
	if err := RegisterRoutes(r, a, tmpl); err != nil {
		return nil, err
	}
	return r, nil
}
