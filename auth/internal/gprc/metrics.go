package gprc_metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"nodove/auth/internal/lib/metrics"
)

// MetricsUnaryInterceptor records call latency and error codes per method.
func MetricsUnaryInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		m.RequestDuration.
			WithLabelValues("grpc", info.FullMethod, code.String()).
			Observe(time.Since(start).Seconds())

		if err != nil {
			m.ErrorCounter.WithLabelValues("grpc", code.String()).Inc()
		}

		return resp, err
	}
}
