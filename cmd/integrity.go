package cmd

import (
	"context"
	"errors"

	"crm-bridge/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixFlag bool

// integrityCmd runs every check.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check the state store, the remotes, the mapping and the report archive",
	Long:  `Checks that the state store schema, the remote fields, the field mapping and the report archive are in place. Exits non-zero when a check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, true, true)
	},
}

var storeCheckCmd = &cobra.Command{
	Use:   "store",
	Short: "Check and fix the state store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, false, false, false)
	},
}

var remoteCheckCmd = &cobra.Command{
	Use:   "remote",
	Short: "Check mapped fields against both remotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, true, false, false)
	},
}

var mappingCheckCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Check the field mapping for enum gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, true, false)
	},
}

var archiveCheckCmd = &cobra.Command{
	Use:   "archive",
	Short: "Check and fix the report archive bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, false, true)
	},
}

var errIntegrity = errors.New("integrity checks failed")

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(storeCheckCmd, remoteCheckCmd, mappingCheckCmd, archiveCheckCmd)

	storeCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Migrate missing tables and columns")
	archiveCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the bucket")
}

func runIntegrityChecks(ctx context.Context, runStore, runRemote, runMapping, runArchive bool) error {
	rt, err := bootstrap(ctx, setup{Remotes: runRemote || runMapping, SkipMigrate: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	logg := rt.logger
	svc := integrity.NewService(rt.db, rt.mapper, rt.inspectors(), rt.archive, logg)
	failed := false

	if runStore {
		logg.Info("Checking state store schema...", zap.String("driver", rt.db.Dialector.Name()))
		report, err := svc.CheckStore()
		if err != nil {
			return err
		}
		if report.Matched {
			logg.Info("State store schema matches the models.")
		} else {
			for table, tbl := range report.Tables {
				if tbl.Status == "ok" {
					continue
				}
				if tbl.Missing {
					logg.Warn("Missing Table", zap.String("table", table))
					continue
				}
				if len(tbl.MissingColumns) > 0 {
					logg.Warn("Missing Columns", zap.String("table", table), zap.Strings("columns", tbl.MissingColumns))
				}
				if len(tbl.TypeMismatches) > 0 {
					logg.Warn("Type Mismatches", zap.String("table", table), zap.Strings("mismatches", tbl.TypeMismatches))
				}
			}
			for _, e := range report.Errors {
				logg.Error("Inspection Error", zap.String("error", e))
			}

			if fixFlag {
				logg.Info("Migrating state store...")
				if err := svc.FixStore(ctx); err != nil {
					return err
				}
				logg.Info("State store migrated successfully.")
			} else {
				logg.Info("Run with --fix to migrate the state store.")
				failed = true
			}
		}
	}

	if runMapping {
		logg.Info("Checking field mapping...")
		report, err := svc.CheckMapping()
		if err != nil {
			return err
		}
		if report.Matched {
			logg.Info("Field mapping covers every enum value on both sides.")
		}
		for _, gap := range report.Gaps {
			failed = true
			logg.Warn("Enum value cannot be written",
				zap.String("entity_type", string(gap.EntityType)),
				zap.String("field", gap.Field),
				zap.String("value", gap.Value),
				zap.String("missing_in", string(gap.MissingIn)))
		}
	}

	if runRemote {
		logg.Info("Checking remote fields...")
		report, err := svc.CheckRemote(ctx)
		if err != nil {
			return err
		}
		for _, e := range report.Entries {
			switch {
			case e.Error != "":
				logg.Error("Remote inspection failed", zap.String("system", string(e.System)), zap.String("entity_type", string(e.EntityType)), zap.String("error", e.Error))
			case len(e.MissingFields) > 0:
				logg.Warn("Mapped fields missing on remote", zap.String("system", string(e.System)), zap.String("entity_type", string(e.EntityType)), zap.Strings("fields", e.MissingFields))
			}
		}
		if report.Matched {
			logg.Info("Remote fields match the mapping.")
		} else {
			failed = true
		}
	}

	if runArchive {
		if rt.archive == nil {
			logg.Info("Report archive is disabled, skipping.")
		} else {
			report, err := svc.CheckArchive(ctx, fixFlag)
			if err != nil {
				return err
			}
			switch {
			case report.Fixed:
				logg.Info("Report archive bucket created.", zap.String("bucket", report.Bucket))
			case report.Exists:
				logg.Info("Report archive bucket exists.", zap.String("bucket", report.Bucket))
			default:
				logg.Warn("Report archive bucket is missing. Run with --fix to create it.", zap.String("bucket", report.Bucket))
				failed = true
			}
		}
	}

	if failed {
		return errIntegrity
	}
	return nil
}
