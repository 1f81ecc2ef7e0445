package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/trip-planner/internal/infra/config"
)

// Cleanup releases backing connections once the server has drained. It may be nil.
type Cleanup func()

// App owns the HTTP server and the resources the planner holds open.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	cleanup Cleanup
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, cleanup Cleanup) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap.app"), server: server, cleanup: cleanup}
}

// Run serves until ctx is cancelled or the listener fails, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	defer a.release()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("trip planner listening", "address", a.cfg.HTTP.Address)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		grace := a.cfg.HTTP.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		a.logger.Info("shutdown signal received", "grace", grace.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.logger.Info("http server drained")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) release() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
