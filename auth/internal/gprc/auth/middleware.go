package grpc_auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/services/auth"
	"nodove/auth/pkg/utils"
)

// Gate resolves access tokens to principals.
type Gate interface {
	Authorize(ctx context.Context, accessToken string) (*models.Principal, error)
}

var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublic(method string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// AuthInterceptor enforces the gate on every unary call except health checks and
// reflection. The principal is attached to the handler context.
func AuthInterceptor(log *slog.Logger, gate Gate) grpc.UnaryServerInterceptor {
	log = log.With(slog.String("component", "grpc/auth"))

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		accessToken, _ := utils.GRPCBearerToken(md)

		principal, err := gate.Authorize(ctx, accessToken)
		if err != nil {
			if errors.Is(err, auth.ErrUserBlocked) {
				return nil, status.Error(codes.PermissionDenied, "user is blocked")
			}
			log.Error("authorization gate failed", slog.String("method", info.FullMethod), sl.Err(err))
			return nil, status.Error(codes.Internal, "internal error")
		}
		if principal == nil {
			clientIP, _ := utils.GetGRPCClientIP(ctx, md)
			log.Debug("unauthenticated call rejected",
				slog.String("method", info.FullMethod),
				slog.String("ip", clientIP),
			)
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}

		return handler(auth.WithPrincipal(ctx, principal), req)
	}
}
