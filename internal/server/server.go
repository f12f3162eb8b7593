// Package server provides the HTTP surface of the session service and the
// Envoy ext_authz gRPC adapter.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/sanasol-ws/dualauth/internal/issuer"
	"github.com/sanasol-ws/dualauth/internal/service"
	"github.com/sanasol-ws/dualauth/internal/trust"
)

// Server manages the HTTP listener and the optional ext_authz gRPC
// listener.
type Server struct {
	httpServer *http.Server
	grpcServer *grpc.Server

	listenAddr      string
	authzListenAddr string

	sessions *service.SessionService
	resolver *issuer.Resolver
	verifier *trust.Verifier
	jwks     *JWKSHandler
	logger   *slog.Logger
}

// Config contains server configuration
type Config struct {
	// ListenAddr is the HTTP listen address
	ListenAddr string

	// AuthzListenAddr is the ext_authz gRPC listen address; empty disables it
	AuthzListenAddr string

	// Sessions drives all session endpoints
	Sessions *service.SessionService

	// Resolver supplies the issuer/host comparison for redirects
	Resolver *issuer.Resolver

	// Verifier backs the ext_authz adapter
	Verifier *trust.Verifier

	// JWKS serves the merged key set
	JWKS *JWKSHandler

	// Logger is an optional structured logger (defaults to slog.Default)
	Logger *slog.Logger
}

// New creates a server from configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listenAddr:      cfg.ListenAddr,
		authzListenAddr: cfg.AuthzListenAddr,
		sessions:        cfg.Sessions,
		resolver:        cfg.Resolver,
		verifier:        cfg.Verifier,
		jwks:            cfg.JWKS,
		logger:          logger,
	}
}

// Start starts the listeners. It returns once they are accepting; serving
// errors are logged.
func (s *Server) Start(ctx context.Context) error {
	if s.jwks != nil {
		s.jwks.Start(ctx)
	}

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.Handler(),
	}

	httpListener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}

	go func() {
		s.logger.Info("http server listening", "addr", s.listenAddr)
		if err := s.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	if s.authzListenAddr != "" {
		s.grpcServer = grpc.NewServer()
		authv3.RegisterAuthorizationServer(s.grpcServer, NewAuthzServer(AuthzServerConfig{
			Verifier: s.verifier,
			Logger:   s.logger,
		}))
		reflection.Register(s.grpcServer)

		grpcListener, err := net.Listen("tcp", s.authzListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.authzListenAddr, err)
		}

		go func() {
			s.logger.Info("ext_authz server listening", "addr", s.authzListenAddr)
			if err := s.grpcServer.Serve(grpcListener); err != nil {
				s.logger.Error("ext_authz server error", "error", err)
			}
		}()
	}

	return nil
}

// Stop gracefully stops the listeners
func (s *Server) Stop(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.jwks != nil {
		s.jwks.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
