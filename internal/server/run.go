package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mrecommender/internal/metrics"
	"mrecommender/pkg/config"
)

// ShutdownTimeout bounds how long in-flight requests get once a stop is requested
const ShutdownTimeout = 10 * time.Second

type listener interface {
	Listen() error
	Serve() error
	Shutdown(ctx context.Context) error
}

// Run binds the fixed-response server, and the admin server when admin.enabled is set,
// then serves until ctx is cancelled or one of them fails. Bind errors are returned
// before anything is served.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()
	srv := New(cfg.GetSubConfig("server"), cfg, m, logger)

	listeners := []listener{srv}
	adminCfg := cfg.GetSubConfig("admin")
	if adminCfg.GetBoolWithDefault("enabled", false) {
		listeners = append(listeners, NewAdmin(adminCfg, srv, m, logger))
	}

	for i, l := range listeners {
		if err := l.Listen(); err != nil {
			closeAll(listeners[:i])
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		g.Go(l.Serve)
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, l := range listeners {
			errs = append(errs, l.Shutdown(shutdownCtx))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server shutdown complete")
		return nil
	})

	return g.Wait()
}

// closeAll releases listeners that were bound before a later bind failed
func closeAll(listeners []listener) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, l := range listeners {
		_ = l.Shutdown(ctx)
	}
}
