package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/session"
	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported next to the overall ("") status.
const HealthService = "wppbot"

// Server exposes the gRPC health service on the session's Unix socket. The
// reported status follows the state machine: SERVING only while READY.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	sub        *bus.Subscription
	stop       chan struct{}
	done       chan struct{}
	logger     *zap.Logger
}

// NewServer binds the control socket. Status changes are tracked from this
// point on, even before Start.
func NewServer(p Params, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		sub:        b.Open(bus.KindStatusChanged, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
	s.set(machine.Current())
	go s.follow()
	return s, nil
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string { return s.socketPath }

// Start serves gRPC requests. It blocks until Stop.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop reports NOT_SERVING, drains in-flight calls and removes the socket.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC server stopping")
	close(s.stop)
	<-s.done
	s.sub.Close()
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}

func (s *Server) follow() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case evt := <-s.sub.C:
			if change, ok := evt.Payload.(status.StatusChange); ok {
				s.set(change.To)
			}
		}
	}
}

func (s *Server) set(st status.State) {
	serving := ServingStatus(st)
	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(HealthService, serving)
	s.logger.Debug("health updated", zap.String("state", string(st)), zap.String("health", serving.String()))
}

// ServingStatus maps a bot state to a health status.
func ServingStatus(st status.State) healthpb.HealthCheckResponse_ServingStatus {
	if st.Serving() {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
