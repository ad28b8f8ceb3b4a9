package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"crm-bridge/core/models"
	"crm-bridge/core/report"
	"crm-bridge/core/store"
	syncfeature "crm-bridge/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	issueType    string
	issueKind    string
	issueAll     bool
	issueLimit   int
	issueFormat  string
	issueOut     string
	issueArchive bool
	yesConfirm   bool
)

// issuesCmd is the parent command for reconciliation issues.
var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List, export and resolve reconciliation issues",
}

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := cliIssueFilter()
		if err != nil {
			return err
		}

		rt, err := bootstrap(ctx, setup{})
		if err != nil {
			return err
		}
		defer rt.Close()

		issues, err := rt.store.ListIssues(ctx, f)
		if err != nil {
			return err
		}
		return printJSON(issues)
	},
}

var issuesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the reconciliation report to a file",
	Long: `Renders issues as CSV or XLSX.

Examples:
  # Open issues as a spreadsheet
  issues export --format xlsx

  # Also upload to the report archive
  issues export --archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, err := report.ParseFormat(issueFormat)
		if err != nil {
			return err
		}
		f, err := cliIssueFilter()
		if err != nil {
			return err
		}

		rt, err := bootstrap(ctx, setup{})
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := syncfeature.NewService(nil, nil, rt.store, rt.archive, rt.logger)
		exp, err := svc.ExportIssues(ctx, format, f, issueArchive)
		if err != nil {
			return err
		}

		out := issueOut
		if out == "" {
			out = exp.Name
		}
		if err := os.WriteFile(out, exp.Data, 0644); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		rt.logger.Info("Reconciliation report saved",
			zap.String("file", out),
			zap.Int("issues", exp.Count),
			zap.String("archive_key", exp.ArchiveKey))
		return nil
	},
}

var issuesResolveCmd = &cobra.Command{
	Use:   "resolve <issue-id>",
	Short: "Mark an issue resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := bootstrap(ctx, setup{})
		if err != nil {
			return err
		}
		defer rt.Close()

		if !confirm(fmt.Sprintf("Resolve issue %s?", args[0])) {
			rt.logger.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}

		svc := syncfeature.NewService(nil, nil, rt.store, rt.archive, rt.logger)
		issue, err := svc.ResolveIssue(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(issue)
	},
}

func init() {
	issuesCmd.AddCommand(issuesListCmd, issuesExportCmd, issuesResolveCmd)

	for _, c := range []*cobra.Command{issuesListCmd, issuesExportCmd} {
		c.Flags().StringVar(&issueType, "type", "", "Entity type")
		c.Flags().StringVar(&issueKind, "kind", "", "Issue kind")
		c.Flags().BoolVar(&issueAll, "all", false, "Include resolved issues")
		c.Flags().IntVar(&issueLimit, "limit", 0, "Maximum number of issues")
	}
	issuesExportCmd.Flags().StringVar(&issueFormat, "format", "csv", "Report format (csv, xlsx)")
	issuesExportCmd.Flags().StringVarP(&issueOut, "out", "o", "", "Output file (default: generated name)")
	issuesExportCmd.Flags().BoolVar(&issueArchive, "archive", false, "Also upload to the report archive")
	issuesResolveCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")

	RootCmd.AddCommand(issuesCmd)
}

func cliIssueFilter() (store.IssueFilter, error) {
	f := store.IssueFilter{IncludeResolved: issueAll, Limit: issueLimit}
	if issueType != "" {
		et, err := models.ParseEntityType(issueType)
		if err != nil {
			return f, err
		}
		f.EntityType = et
	}
	if issueKind != "" {
		kind := models.IssueKind(issueKind)
		known := false
		for _, k := range models.IssueKinds {
			known = known || k == kind
		}
		if !known {
			return f, fmt.Errorf("unknown issue kind %q", issueKind)
		}
		f.Kind = kind
	}
	return f, nil
}

// confirm prompts the user for confirmation or uses the --yes flag.
func confirm(prompt string) bool {
	if yesConfirm {
		return true
	}

	fmt.Printf("%s Type 'yes' to confirm: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
