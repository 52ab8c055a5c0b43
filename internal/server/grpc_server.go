package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/oggyb/guestmatch/internal/config"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

// HealthCheckMethod is reachable without a session.
const HealthCheckMethod = "/grpc.health.v1.Health/Check"

// NewGRPCServer builds a server with the JSON codec, the given interceptors
// (after logging/recovery), health, reflection and all registrars.
func NewGRPCServer(log *slog.Logger, interceptors []grpc.UnaryServerInterceptor, registrars ...Registrar) (*grpc.Server, *health.Server) {
	chain := append([]grpc.UnaryServerInterceptor{loggingInterceptor(log)}, interceptors...)

	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(chain...),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer, hs
}

// StartGRPCServer serves until ctx is done, then stops gracefully.
func StartGRPCServer(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// loggingInterceptor logs each call, turns panics into Internal, and logs
// errors outside the taxonomy before they are replaced by the generic message.
func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "Something went wrong. Please try again.")
			}
		}()

		resp, err = handler(ctx, req)

		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
		switch {
		case err == nil:
			log.Debug("grpc call", attrs...)
		case code == codes.Internal || code == codes.Unknown:
			log.Error("grpc call failed", append(attrs, "err", err)...)
		default:
			log.Info("grpc call rejected", attrs...)
		}

		if _, isStatus := status.FromError(err); err != nil && !isStatus {
			err = svcErr.Map(err)
		}
		return resp, err
	}
}
