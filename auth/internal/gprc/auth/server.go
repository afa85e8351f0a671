package grpc_auth

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/services/auth"
)

const (
	ServiceName   = "auth.v1.Auth"
	VerifyMethod  = "/auth.v1.Auth/Verify"
	DevicesMethod = "/auth.v1.Auth/Devices"
)

// Sessions lists the device sessions of a user.
type Sessions interface {
	Devices(ctx context.Context, userID string) ([]*models.Session, error)
}

// AuthServer is served behind AuthInterceptor: every method sees the caller's principal.
type AuthServer interface {
	Verify(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Devices(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

type serverAPI struct {
	log      *slog.Logger
	sessions Sessions
}

func Register(gRPCServer *grpc.Server, log *slog.Logger, sessions Sessions) {
	gRPCServer.RegisterService(&authServiceDesc, &serverAPI{
		log:      log.With(slog.String("component", "grpc/auth")),
		sessions: sessions,
	})
}

// Verify returns the principal of the access token sent in the "authorization" metadata.
func (s *serverAPI) Verify(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p := auth.PrincipalFrom(ctx)
	if p == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	roles := make([]interface{}, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}

	fields := map[string]interface{}{
		"userId": p.UserID,
		"email":  p.Email,
		"roles":  roles,
	}
	if p.Nickname != "" {
		fields["userNick"] = p.Nickname
	}

	return newStruct(fields)
}

func (s *serverAPI) Devices(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	const op = "grpc_auth.Devices"

	p := auth.PrincipalFrom(ctx)
	if p == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	sessions, err := s.sessions.Devices(ctx, p.UserID)
	if err != nil {
		s.log.Error("failed to list devices", slog.String("op", op), sl.Err(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	devices := make([]interface{}, 0, len(sessions))
	for _, session := range sessions {
		devices = append(devices, map[string]interface{}{
			"deviceId":  session.DeviceID,
			"ip":        session.IP,
			"userAgent": session.UserAgent,
			"createdAt": session.CreatedAt.UTC().Format(time.RFC3339),
			"updatedAt": session.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	return newStruct(map[string]interface{}{"devices": devices})
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func verifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServer).Verify(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func devicesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Devices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DevicesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServer).Devices(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// authServiceDesc is written by hand: requests and replies are well-known types, so
// no generated code is needed.
var authServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
		{MethodName: "Devices", Handler: devicesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/auth.proto",
}
