package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanasol-ws/dualauth/internal/config"
	"github.com/sanasol-ws/dualauth/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dualauth server",
		Long: `Start the dualauth session service.

The server will:
  - Serve the session HTTP API and the JWKS document
  - Answer Envoy ext_authz checks over gRPC (when configured)
  - Load configuration from file, environment variables, and command-line flags

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (DUALAUTH_*)
  3. Configuration file (if --config or DUALAUTH_CONFIG is set)
  4. Built-in defaults

Examples:
  # Start with default settings
  dualauth serve

  # Override the listen address and issuer domain
  dualauth serve --listen-addr :9090 --base-domain sessions.example.com

  # Use a custom config file with a redis session store
  dualauth serve --config /etc/dualauth/config.yaml --store-backend redis`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv("DUALAUTH_CONFIG")
	}

	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)
	logger := provider.Logger()

	sessions, err := provider.SessionService(ctx)
	if err != nil {
		return fmt.Errorf("failed to build session service: %w", err)
	}
	verifier, err := provider.Verifier()
	if err != nil {
		return fmt.Errorf("failed to build verifier: %w", err)
	}
	keyring, err := provider.Keyring()
	if err != nil {
		return fmt.Errorf("failed to build keyring: %w", err)
	}

	srv := server.New(server.Config{
		ListenAddr:      cfg.Server.ListenAddr,
		AuthzListenAddr: cfg.Server.AuthzListenAddr,
		Sessions:        sessions,
		Resolver:        provider.Resolver(),
		Verifier:        verifier,
		JWKS: server.NewJWKSHandler(server.JWKSHandlerConfig{
			Keyring: keyring,
			Logger:  logger,
		}),
		Logger: logger,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Println("dualauth is running")
	fmt.Printf("  HTTP (sessions):  %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  HTTP (JWKS):      %s/.well-known/jwks.json\n", cfg.Server.ListenAddr)
	if cfg.Server.AuthzListenAddr != "" {
		fmt.Printf("  gRPC (ext_authz): %s\n", cfg.Server.AuthzListenAddr)
	}
	fmt.Printf("  Issuer domain:    %s\n", cfg.BaseDomain)
	if configPath != "" {
		fmt.Printf("  Config:           %s\n", configPath)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")

	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	if metrics := provider.Metrics(); metrics != nil {
		metrics.Stop()
	}

	fmt.Println("Shutdown complete")
	return nil
}
