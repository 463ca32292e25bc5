package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server"
	"github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/spf13/cobra"
)

// Flags are parsed by the config package from os.Args, so cobra only
// dispatches on the subcommand name.
var rootCmd = &cobra.Command{
	Use:                "gophsync-server",
	Short:              "gophsync replica server",
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC replica endpoint (default)",
	Long: `Run the gRPC replica endpoint.

Pending schema migrations are applied before the server starts accepting
connections. Flags:
  -a  gRPC address          -d  PostgreSQL DSN
  -s  JWT secret            -t  token validity (minutes)
  -k  device secret         -x  presigned URL expiry (minutes)
  -u/-p  S3 credentials     -b  S3 bucket
  -g  S3 region             -e  S3 endpoint
  -l  log level             -c  JSON config file`,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runServe,
}

var migrateCmd = &cobra.Command{
	Use:                "migrate",
	Short:              "Apply database migrations and exit",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
		return server.Migrate(cmd.Context(), cfg, logger)
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error(cmd.Context(), "server init failed", "error", err)
		return err
	}
	return app.Run(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
