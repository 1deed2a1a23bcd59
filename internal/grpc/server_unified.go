package grpc

import (
	"fmt"
	"net"

	"github.com/oriys/dispatchfabric/internal/dispatch"
	"github.com/oriys/dispatchfabric/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// UnifiedServer serves the gRPC health and reflection services and holds
// a DataPlaneServer built around the configured fabric. The
// DataPlaneServer is not registered on the grpc.Server, so it is not
// reachable over gRPC; GetDataPlane returns it.
type UnifiedServer struct {
	dataPlane  *DataPlaneServer
	grpcServer *grpc.Server
	listener   net.Listener
}

// Config holds configuration for the unified gRPC server. Dispatch is the
// fabric DataPlaneServer.Invoke submits every request through; the caller
// of Invoke is the agent, and Invoke itself drives RunOnce/Drain as the
// host. Address is not read: Start takes the listen address.
type Config struct {
	Address  string
	Dispatch *dispatch.Fabric
}

// NewUnifiedServer creates a new unified gRPC server around cfg.Dispatch.
func NewUnifiedServer(cfg *Config) (*UnifiedServer, error) {
	dataPlane := NewDataPlaneServer(cfg.Dispatch)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor,
			errorHandlingInterceptor,
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	return &UnifiedServer{
		dataPlane:  dataPlane,
		grpcServer: grpcServer,
	}, nil
}

// Start starts the unified gRPC server
func (s *UnifiedServer) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = lis
	logging.Op().Info("unified gRPC server starting", "address", address)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			logging.Op().Error("gRPC server error", "error", err)
		}
	}()

	logging.Op().Info("unified gRPC server started", "address", address)
	return nil
}

// Stop gracefully stops the gRPC server
func (s *UnifiedServer) Stop() {
	if s.grpcServer != nil {
		logging.Op().Info("stopping gRPC server")
		s.grpcServer.GracefulStop()
	}
	if s.listener != nil {
		s.listener.Close()
	}
}

// GetDataPlane returns the data plane server
func (s *UnifiedServer) GetDataPlane() *DataPlaneServer {
	return s.dataPlane
}
