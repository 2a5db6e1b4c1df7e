package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/server"
)

// NewServeCmd serves the segments of a pipeline document over HTTP
func NewServeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve pipeline stages over HTTP",
		Long:  "POST an image to /api/process/<stage> to run one processing stage of the document on it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			addr, _ := cmd.Flags().GetString("addr")
			wip, _ := cmd.Flags().GetString("wip")
			quiet, _ := cmd.Flags().GetBool("quiet")

			doc, g, err := loadGraph(path, wip, cmd.Flags().Changed("log-level"))
			if err != nil {
				return err
			}
			if addr == "" {
				addr = doc.Server.Address
			}
			var access io.Writer
			if !quiet {
				access = os.Stdout
			}
			s := server.New(g, doc.Server, slog.Default(), access)
			return s.Run(ctx, addr)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", config.GetConfigPath(), "pipeline document")
	pf.String("addr", "", "listen address (default: server.address from the document)")
	pf.String("wip", "", "override the document's wip_directory")
	pf.Bool("quiet", false, "no access log")
	return cmd
}
