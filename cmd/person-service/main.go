/**
 * @description
 * This is the main entry point for the person-service. `serve` wires
 * configuration, storage, the broker, the identity provider and the HTTP API
 * and runs until a signal or a shutdown command arrives; `migrate` applies
 * the Postgres schema and exits.
 *
 * @dependencies
 * - github.com/spf13/cobra: command line.
 * - github.com/joho/godotenv: optional .env loading.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:     "person-service",
		Short:   "Person and contact microservice",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is normal outside local development.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory searched for the .env config file")

	rootCmd.AddCommand(serveCmd(&configDir))
	rootCmd.AddCommand(migrateCmd(&configDir))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox dispatcher and the system command consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configDir)
		},
	}
}

func migrateCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configDir)
		},
	}
}
