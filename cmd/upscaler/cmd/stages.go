package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/stages"
)

// NewStagesCmd lists stage classes, or the stages of a document
func NewStagesCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "list stage classes or the stages of a pipeline document",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			w := cmd.OutOrStdout()
			if path == "" {
				for _, c := range stages.Default().Classes() {
					fmt.Fprintln(w, c)
				}
				return nil
			}

			doc, err := config.LoadFromFile(path)
			if err != nil {
				return err
			}
			for _, name := range doc.StageNames() {
				spec := doc.Stages[name]
				fmt.Fprintf(w, "%-20s %-14s %s\n", name, spec.Class, formatDownstream(spec.Downstream))
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringP("config", "c", "", "pipeline document to describe")
	return cmd
}

func formatDownstream(d config.Downstream) string {
	outlets := make([]string, 0, len(d))
	for o := range d {
		outlets = append(outlets, o)
	}
	sort.Strings(outlets)
	var parts []string
	for _, o := range outlets {
		targets := strings.Join(d[o], ",")
		if o == config.DefaultOutlet {
			parts = append(parts, "-> "+targets)
		} else {
			parts = append(parts, o+" -> "+targets)
		}
	}
	return strings.Join(parts, "  ")
}
