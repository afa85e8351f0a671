package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nodove/auth/internal/lib/logger/sl"
)

type App struct {
	log    *slog.Logger
	name   string
	server *http.Server
}

// Timeouts bound a server's connection handling.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

func New(log *slog.Logger, name string, port int, handler http.Handler, t Timeouts) *App {
	return &App{
		log:  log.With(slog.String("server", name)),
		name: name,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadTimeout:       t.Read,
			ReadHeaderTimeout: t.Read,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
		},
	}
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	a.log.Info("HTTP server is running", slog.String("addr", a.server.Addr))

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop waits for in-flight requests until ctx is done.
func (a *App) Stop(ctx context.Context) {
	const op = "httpapp.Stop"

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("failed to stop HTTP server", slog.String("op", op), sl.Err(err))
	}
}
