package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"taskboard/internal/cli/formatter"
	"taskboard/pkg/dashboard"
	"taskboard/pkg/depgraph"
	"taskboard/pkg/export"
	"taskboard/pkg/task"
)

func newDiagramCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Print the dependency graph as Mermaid with the critical path highlighted",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, deps, err := loadGraph(cmd, app)
			if err != nil {
				return err
			}
			a := depgraph.Analyze(tasks, deps)
			definition := a.Mermaid() + "\n"

			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), definition)
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.FormatCriticalPath(a))
				return nil
			}
			if err := os.WriteFile(out, []byte(definition), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n%s\n", out, formatter.FormatCriticalPath(a))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file (e.g. task-dependency.mmd)")

	return cmd
}

func newSummaryCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show dashboard counts and registration trends",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := app.Tasks.List(cmd.Context(), task.Filters{})
			if err != nil {
				return err
			}
			loc := app.Location
			if loc == nil {
				loc = app.now().Location()
			}
			s := dashboard.SummarizeIn(tasks, loc)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatSummary(s))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tasks as csv, json or yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !export.Supported(format) {
				return fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, format)
			}
			tasks, err := app.Tasks.List(cmd.Context(), task.Filters{})
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, format, tasks); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d task(s) to %s\n", len(tasks), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", export.CSV, "csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")

	return cmd
}

func newInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Tasks.EnsureTable(cmd.Context()); err != nil {
				return err
			}
			if err := app.Memos.EnsureTable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tables ready (%s)\n", app.Backend)
			return nil
		},
	}
}
