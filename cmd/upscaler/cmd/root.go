package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	upscaler "github.com/menta2k/texture-upscaler"
	"github.com/menta2k/texture-upscaler/pkg/logging"
)

// logLevel is the level of the default logger. Pipeline documents set it
// from their verbosity unless --log-level was given.
var logLevel = new(slog.LevelVar)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	var logFile io.Closer
	cmd := &cobra.Command{
		Use:           "upscaler",
		Short:         "tiled texture upscaling pipelines",
		Long:          "Runs declarative stage graphs that sort, split, scale and write game textures.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			levelName, _ := cmd.Flags().GetString("log-level")
			logPath, _ := cmd.Flags().GetString("log-file")
			logJSON, _ := cmd.Flags().GetBool("log-json")

			level, err := logging.ParseLevel(levelName)
			var w io.Writer = os.Stderr
			if logPath != "" {
				fw := logging.FileWriter(logPath)
				logFile = fw
				w = io.MultiWriter(os.Stderr, fw)
			}
			logLevel.Set(level)
			slog.SetDefault(logging.Logger(w, logJSON, logLevel))
			if err != nil {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", levelName, "error", err)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				logFile.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewRunCmd(ctx),
		NewProcessCmd(ctx),
		NewTileCmd(ctx),
		NewServeCmd(ctx),
		NewStagesCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "also write logs to this file (rotated)")
	pf.Bool("log-json", false, "log as JSON")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "library version and git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", upscaler.GetVersion(), gitsha)
		},
	}
	return cmd
}
