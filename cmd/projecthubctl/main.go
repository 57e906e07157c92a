// Command projecthubctl runs operator tasks against a projecthub deployment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"projecthub/internal/config"
	"projecthub/internal/database"
	"projecthub/internal/log"
	"projecthub/internal/repository"
	"projecthub/internal/service"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.AppConfig
	log zerolog.Logger
}

// loadEnv is deferred until a subcommand runs so `version` works without
// any configuration.
func loadEnv() (env, error) {
	cfg, err := config.Load()
	if err != nil {
		return env{}, err
	}
	return env{cfg: cfg, log: log.New(cfg.Environment, cfg.Logging.Level)}, nil
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "projecthubctl",
		Short:         "Operator tasks for projecthub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(), createProviderCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "projecthubctl version %s\n", Version)
		},
	})

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return database.MigrateUp(e.cfg.Postgres.DSN, e.log)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return database.MigrateDown(e.cfg.Postgres.DSN, steps, e.log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

// createProviderCmd seeds a provider account. Providers cannot sign up
// through the public API.
func createProviderCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-provider",
		Short: "Create a provider account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := database.NewPostgresPool(ctx, e.cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			auth := service.NewAuthService(
				repository.NewUserRepository(pool),
				nil,
				nil,
				nil,
				e.cfg.Security,
				e.log,
			)
			user, err := auth.CreateProvider(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created provider %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
