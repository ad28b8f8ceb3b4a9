package cmd

import (
	"fmt"
	"os"
	"strings"

	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	syncfeature "crm-bridge/feature/sync"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncDryRun bool
	syncTypes  string
	syncLimit  int
)

// syncCmd is the parent command for cycle operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run and inspect sync cycles",
}

// syncRunCmd runs one cycle in the foreground.
var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync cycle now",
	Long: `Runs one reconciliation cycle in this process and prints its report.

Examples:
  # Plan only, no writes to either system
  sync run --dry-run

  # Only companies and deals
  sync run --types company,deal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		types, err := parseEntityTypes(syncTypes)
		if err != nil {
			return err
		}

		rt, err := bootstrap(ctx, setup{Remotes: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		orch, err := rt.newOrchestrator(nil)
		if err != nil {
			return err
		}

		rt.logger.Info("Starting sync cycle", zap.Bool("dry_run", syncDryRun), zap.String("types", syncTypes))
		svc := syncfeature.NewService(orch, nil, rt.store, rt.archive, rt.logger)
		report, runErr := svc.Run(ctx, orchestrator.RunOptions{DryRun: syncDryRun, EntityTypes: types}, true)
		if report != nil {
			if err := printJSON(report); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		if report.Cycle.Status == models.CycleFailed {
			return fmt.Errorf("cycle %s failed: %s", report.Cycle.CycleID, report.Cycle.Error)
		}
		return nil
	},
}

// syncStatusCmd lists recent cycles.
var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sync cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := bootstrap(ctx, setup{})
		if err != nil {
			return err
		}
		defer rt.Close()

		cycles, err := rt.store.ListCycles(ctx, syncLimit)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("No cycles recorded.")
			return nil
		}

		fmt.Printf("%-36s  %-9s  %-20s  %8s  %8s  %8s  %8s\n", "CYCLE", "STATUS", "STARTED", "ENTITIES", "OPS", "ISSUES", "FAILURES")
		for _, c := range cycles {
			status := string(c.Status)
			if c.DryRun {
				status += "*"
			}
			fmt.Printf("%-36s  %-9s  %-20s  %8d  %8d  %8d  %8d\n",
				c.CycleID, status, c.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
				c.EntitiesProcessed, c.OperationsApplied, c.IssuesRaised, c.Failures)
			if c.Error != "" {
				fmt.Printf("  error: %s\n", c.Error)
			}
		}
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncRunCmd, syncStatusCmd)

	syncRunCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Plan only, do not write to either system")
	syncRunCmd.Flags().StringVar(&syncTypes, "types", "", "Comma separated entity types (default: all configured)")
	syncStatusCmd.Flags().IntVar(&syncLimit, "limit", 10, "Number of cycles to show")

	RootCmd.AddCommand(syncCmd)
}

func parseEntityTypes(s string) ([]models.EntityType, error) {
	var out []models.EntityType
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		et, err := models.ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
