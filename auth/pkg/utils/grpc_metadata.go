package utils

import (
	"context"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// AddAuthTokenToContext attaches "authorization: Bearer <token>" to outgoing gRPC metadata.
func AddAuthTokenToContext(ctx context.Context, accessToken string) context.Context {
	md := metadata.Pairs("authorization", BearerPrefix+accessToken)

	if existingMd, ok := metadata.FromOutgoingContext(ctx); ok {
		md = metadata.Join(existingMd, md)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

// GRPCBearerToken extracts the bearer token from incoming metadata.
func GRPCBearerToken(md metadata.MD) (string, bool) {
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", false
	}
	return BearerToken(values[0])
}

// GetGRPCClientIP prefers x-forwarded-for and falls back to the peer address.
func GetGRPCClientIP(ctx context.Context, md metadata.MD) (string, error) {
	if forwardedFor := md.Get("x-forwarded-for"); len(forwardedFor) > 0 {
		if ip := strings.TrimSpace(strings.Split(forwardedFor[0], ",")[0]); ip != "" {
			return ip, nil
		}
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "", fmt.Errorf("failed to get client IP")
	}

	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String(), nil
	}

	return host, nil
}
