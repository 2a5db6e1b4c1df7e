package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/logging"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/stages"
)

// loadGraph reads a pipeline document and builds it against the built-in
// stage classes. wip overrides the document's WIP directory when set. The
// document's verbosity sets the log level unless keepLevel is true.
func loadGraph(path, wip string, keepLevel bool) (*config.Config, *pipeline.Graph, error) {
	doc, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}
	if wip != "" {
		doc.WIPDirectory = wip
	}
	if !keepLevel {
		logLevel.Set(logging.VerbosityLevel(doc.Verbosity))
	}
	env := pipeline.NewContext(doc.WIPDirectory, doc.Verbosity, slog.Default())
	g, err := pipeline.Build(doc, stages.Default(), env)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, g, nil
}

// NewRunCmd runs a pipeline document
func NewRunCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a pipeline document",
		Long:  "Builds the stage graph in the pipeline document and drives every source image through it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			wip, _ := cmd.Flags().GetString("wip")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			_, g, err := loadGraph(path, wip, cmd.Flags().Changed("log-level"))
			if err != nil {
				return err
			}
			if dryRun {
				for _, name := range g.Names() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, g.Class(name))
				}
				return nil
			}

			sum, err := g.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d item(s), %d visit(s) in %s\n",
				sum.RunID, sum.Items, sum.Visits, sum.Duration)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", config.GetConfigPath(), "pipeline document")
	pf.String("wip", "", "override the document's wip_directory")
	pf.Bool("dry-run", false, "build and validate the graph without running it")
	return cmd
}
