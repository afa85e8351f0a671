package grpcapp

import (
	"fmt"
	"log/slog"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	gprc_metrics "nodove/auth/internal/gprc"
	grpc_auth "nodove/auth/internal/gprc/auth"
	"nodove/auth/internal/lib/metrics"
)

// AuthService backs the gate interceptor and the Auth service.
type AuthService interface {
	grpc_auth.Gate
	grpc_auth.Sessions
}

type App struct {
	log        *slog.Logger
	gRPCServer *grpc.Server
	health     *health.Server
	port       int
}

func New(log *slog.Logger, port int, authService AuthService, m *metrics.Metrics) *App {
	grpcMetrics := grpc_prometheus.NewServerMetrics(
		grpc_prometheus.WithServerHandlingTimeHistogram(),
	)
	m.Registry.MustRegister(grpcMetrics)

	gRPCServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			gprc_metrics.MetricsUnaryInterceptor(m),
			grpc_auth.AuthInterceptor(log, authService),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
		),
	)

	grpc_auth.Register(gRPCServer, log, authService)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(gRPCServer, healthServer)

	reflection.Register(gRPCServer)

	grpcMetrics.InitializeMetrics(gRPCServer)

	return &App{
		log:        log,
		gRPCServer: gRPCServer,
		health:     healthServer,
		port:       port,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "grpcapp.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return a.Serve(l)
}

// Serve accepts connections on l until Stop is called.
func (a *App) Serve(l net.Listener) error {
	const op = "grpcapp.Serve"

	a.log.Info("gRPC server is running", slog.String("addr", l.Addr().String()))

	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := a.gRPCServer.Serve(l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *App) Stop() {
	const op = "grpcapp.Stop"

	a.log.With(
		slog.String("op", op),
	).Info("stopping gRPC server", slog.Int("port", a.port))

	a.health.Shutdown()
	a.gRPCServer.GracefulStop()
}
