package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"userbench/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "userbench",
		Short:         "Users API served in blocking or event-loop mode for concurrency benchmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// each command binds its own flags, so each gets its own viper
	root.AddCommand(newServeCmd(config.New()))
	root.AddCommand(newMigrateCmd(config.New()))
	root.AddCommand(newVersionCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bindDatabaseFlags exposes the store settings shared by serve and migrate.
func bindDatabaseFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("driver", "", "database driver: sqlite, postgres or pgx")
	cmd.Flags().String("dsn", "", "database path (sqlite) or connection string (postgres, pgx)")
	_ = v.BindPFlag("database.driver", cmd.Flags().Lookup("driver"))
	_ = v.BindPFlag("database.dsn", cmd.Flags().Lookup("dsn"))
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
