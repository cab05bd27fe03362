// Package cmd contains the command line interface of the backend.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/config"
	"github.com/greenbudget/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cfg is loaded before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "greenbudget",
	Short: "Backend for production budgets",
	Long: `greenbudget serves the budgeting API and provides maintenance
commands for its database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		setupLogging(cfg.LogFormat, os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(pruneGroupsCmd)
}

// Execute runs the command given on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging configures gin and the global logger.
//
// gin uses debug as the default mode, we use release unless GIN_MODE is
// set. The log format defaults to human readable in debug mode and JSON
// otherwise.
func setupLogging(format string, out io.Writer) {
	ginMode, ok := os.LookupEnv("GIN_MODE")
	if !ok {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(ginMode)
	}

	output := out
	if (format == "" && gin.IsDebugging()) || format == "human" {
		output = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()
}

// connect opens the configured database. For sqlite, the directory of the
// database file is created if it does not exist.
func connect(cfg *config.Config) error {
	if cfg.DB.Driver == models.DriverSQLite {
		err := os.MkdirAll(filepath.Dir(cfg.DB.DSN), os.ModePerm)
		if err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	return models.Open(cfg.DB.Driver, cfg.DB.DSN)
}

// disconnect closes the database connection.
func disconnect() {
	sqlDB, err := models.DB.DB()
	if err != nil {
		log.Error().Err(err).Msg("getting database connection")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("closing database connection")
	}
}
