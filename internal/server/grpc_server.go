package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/sengunthar/matrimony/internal/config"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/logger"
)

// Registrar attaches one service to the gRPC server.
type Registrar interface {
	Register(s *grpc.Server)
}

// NewGRPCServer builds a gRPC server with all registrars attached and
// reflection enabled for grpcurl. Handler errors leave as status errors.
func NewGRPCServer(registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryErrors),
		grpc.ChainStreamInterceptor(streamErrors),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	reflection.Register(grpcServer)
	return grpcServer
}

func unaryErrors(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, svcErr.Map(err)
}

func streamErrors(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return svcErr.Map(handler(srv, ss))
}

// StartGRPCServer listens on the configured address and serves until ctx
// is cancelled, then stops gracefully.
func StartGRPCServer(ctx context.Context, cfg *config.Config, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ServeGRPC(ctx, lis, NewGRPCServer(registrars...))
}

// ServeGRPC runs grpcServer on lis until ctx ends.
func ServeGRPC(ctx context.Context, lis net.Listener, grpcServer *grpc.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("stopping gRPC server")
		grpcServer.GracefulStop()
		return nil
	}
}
