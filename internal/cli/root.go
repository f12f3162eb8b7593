// Package cli wires the command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// configFile holds the --config flag value shared by all commands.
var configFile string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dualauth",
		Short: "Federated session and authentication service",
		Long: `dualauth issues, verifies, and exchanges game session tokens.

It serves the session HTTP API, publishes its signing keys as a JWKS
document, and optionally answers Envoy ext_authz checks over gRPC.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to configuration file (also DUALAUTH_CONFIG)")

	cmd.AddCommand(NewServeCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
