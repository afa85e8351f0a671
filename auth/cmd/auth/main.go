package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"nodove/auth/internal/app"
	"nodove/auth/internal/config"
	"nodove/auth/internal/lib/logger/handlers/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const localLogFile = "logs/auth.log"

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting application",
		slog.String("env", cfg.Env),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.Int("grpc_port", cfg.GRPC.Port),
		slog.String("token_format", cfg.Token.Format),
		slog.Bool("kafka", cfg.Kafka.Enabled),
	)

	application := app.New(log, cfg)

	go application.HTTPSrv.MustRun()
	go application.MetricsSrv.MustRun()
	go application.GRPCSrv.MustRun()
	application.BlockSweeper.Start()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	sign := <-stop
	log.Info("stopping application", slog.String("signal", sign.String()))

	application.Stop()
	log.Info("application stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
		}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	if err := os.MkdirAll(filepath.Dir(localLogFile), 0o755); err != nil {
		panic(err)
	}
	file, err := os.OpenFile(localLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		panic(err)
	}

	handler := opts.NewPrettyHandler(os.Stdout, &slogpretty.FileWriter{File: file})

	return slog.New(handler)
}
