// A small HTTP surface for operators: inspecting the record index, triggering the maintenance operations, and
// scraping prometheus metrics. Sync clients talk to the Redis port; humans and cron talk to this one.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var adminAddress = flag.String("admin_address", ":8680", "The ip:port to listen on for the admin HTTP server.")

const adminShutdownTimeout = 5 * time.Second

// NewAdminHandler builds the echo handler serving the admin routes for `backend`.
func NewAdminHandler(backend *SyncBackend) (*echo.Echo, error) {
	if backend == nil {
		return nil, errors.New("expected a non-nil sync backend")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/index", func(c echo.Context) error {
		entries, err := backend.Index(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if entries == nil { // Serve an empty index as [] rather than null.
			entries = []cacheindex.Entry{}
		}
		return c.JSON(http.StatusOK, entries)
	})

	e.POST("/maintenance/prune", func(c echo.Context) error {
		lifetime := cacheindex.DefaultLifetime
		if rawLifetime := c.QueryParam("lifetime"); rawLifetime != "" {
			parsed, err := cacheindex.ParseLifetime(rawLifetime)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			lifetime = parsed
		}
		if err := backend.Prune(c.Request().Context(), lifetime); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.POST("/maintenance/clearseries", func(c echo.Context) error {
		queryParams := c.QueryParams()
		if len(queryParams) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "expected the request params of the series as query params")
		}
		params := make(map[string]string, len(queryParams))
		for name := range queryParams {
			params[name] = queryParams.Get(name)
		}
		if err := backend.ClearSeries(c.Request().Context(), params); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.POST("/maintenance/clearall", func(c echo.Context) error {
		if err := backend.ClearAll(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e, nil
}

// RunAdminServer starts the admin HTTP server and blocks until the context is cancelled or the server fails.
func RunAdminServer(ctx context.Context, backend *SyncBackend) error {
	if *adminAddress == "" {
		return errors.New("expected a non-empty --admin_address flag")
	}

	handler, err := NewAdminHandler(backend)
	if err != nil {
		return fmt.Errorf("failed to create the admin handler: %w", err)
	}

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := handler.Start(*adminAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down the admin server: %w", err)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("admin server stopped unexpectedly: %w", err)
	}

	return nil
}
