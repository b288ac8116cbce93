package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"userbench/internal/config"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.users.Init(ctx); err != nil {
				return err
			}
			logger.Infof("schema ready (driver %s)", cfg.Database.Driver)
			return nil
		},
	}
	bindDatabaseFlags(cmd, v)
	return cmd
}
