package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/sissync"
	"github.com/agentstation/sissync/internal/output"
)

// NewSyncCommand creates the sync command.
func (a *App) NewSyncCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync [entity...]",
		Short: "Synchronize the apps API with the Keystone exports",
		Long: `Sync brings every entity, or only the named ones, in line with its export.
Entities referenced by the selected ones are still created on demand.`,
		Example: `  sissync sync
  sissync sync students enrollments
  sissync sync --dry-run -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd, sissync.WithEntities(args...), sissync.WithDryRun(dryRun))
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log planned changes without sending them")
	return cmd
}

// NewPlanCommand creates the plan command.
func (a *App) NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [entity...]",
		Short: "Show what sync would change without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd, sissync.WithEntities(args...), sissync.WithDryRun(true))
		},
	}
}

func (a *App) runSync(cmd *cobra.Command, opts ...sissync.SyncOption) error {
	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return err
	}

	client, err := a.Client()
	if err != nil {
		return err
	}

	result, err := client.Sync(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	return output.NewFormatter(output.DetectFormat(string(format))).Format(cmd.OutOrStdout(), newSyncReport(result))
}

// NewEntitiesCommand creates the entities command.
func (a *App) NewEntitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List entity definitions in sync order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(a.config.Format)
			if err != nil {
				return err
			}

			client, err := a.Client()
			if err != nil {
				return err
			}

			defs := client.Entities()
			format = output.DetectFormat(string(format))
			if format != output.FormatTable {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), defs)
			}

			data := output.Data{Headers: []string{"Entity", "Kind", "Key", "Refs", "File"}}
			for _, def := range defs {
				kind, file := "export", def.FileName()
				if def.Reference {
					kind, file = "reference", "-"
				}
				data.Rows = append(data.Rows, []string{
					def.Name,
					kind,
					strings.Join(def.Key, ", "),
					strings.Join(def.Refs(), ", "),
					file,
				})
			}
			return output.NewFormatter(output.FormatTable).Format(cmd.OutOrStdout(), data)
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sissync %s (commit %s, built %s by %s)\n", a.version, a.commit, a.date, a.builtBy)
		},
	}
}
