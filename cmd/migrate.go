package cmd

import (
	"crm-bridge/core/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd creates or updates the state store schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the state store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := bootstrap(ctx, setup{SkipMigrate: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.Migrate(ctx); err != nil {
			return err
		}
		rt.logger.Info("State store migrated", zap.Int("tables", len(store.AllModels())), zap.String("driver", rt.db.Dialector.Name()))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
