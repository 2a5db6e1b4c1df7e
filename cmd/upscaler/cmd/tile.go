package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	upscaler "github.com/menta2k/texture-upscaler"
	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

// NewTileCmd scales one image with the tiled scaler
func NewTileCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "tiled upscale of a single image",
		Long:  "Splits --in into overlapping tiles, scales each one and blends them back together.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			debug, _ := cmd.Flags().GetBool("debug")
			opts := upscaler.DefaultTileOptions()
			opts.Factor, _ = cmd.Flags().GetFloat64("factor")
			opts.Size, _ = cmd.Flags().GetInt("size")
			opts.Overlap, _ = cmd.Flags().GetInt("overlap")
			opts.Method, _ = cmd.Flags().GetString("method")
			opts.Workers, _ = cmd.Flags().GetInt("workers")

			if in == "" && len(args) > 0 {
				in = args[0]
			}
			if in == "" {
				return fmt.Errorf("input image is required. Use --in flag or provide as argument")
			}
			if out == "" {
				out = fmt.Sprintf("%s_x%g.png", utils.StripExtension(in), opts.Factor)
			}

			p := processing.NewProcessor()
			img, err := p.LoadImage(in)
			if err != nil {
				return err
			}

			start := time.Now()
			res, sub, err := upscaler.New().UpscaleTiles(ctx, img, opts)
			if err != nil {
				return err
			}
			nx, ny := sub.Grid()
			slog.InfoContext(ctx, "upscaled", "in", in, "tiles", fmt.Sprintf("%dx%d", nx, ny),
				"size", res.Bounds().Size().String(), "duration", time.Since(start).Round(time.Millisecond))

			if err := p.SaveImage(res, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if debug {
				dbg := utils.StripExtension(out) + "_grid.png"
				stroke := max(1, int(sub.Scale()))
				if err := p.SaveImage(processing.DrawTileGrid(res, sub.Boxes(), stroke), dbg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dbg)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "input image")
	pf.StringP("out", "o", "", "output image (default: <in>_x<factor>.png)")
	pf.Float64P("factor", "f", 2, "scale factor")
	pf.Int("size", 256, "tile size in pixels")
	pf.Int("overlap", 16, "overlap between neighbouring tiles")
	pf.String("method", "catmullrom", "catmullrom or a resample filter (nearest, box, linear, hermite, bspline, lanczos)")
	pf.Int("workers", 0, "parallel tiles (0: one per CPU)")
	pf.Bool("debug", false, "also write the tile grid overlay")
	return cmd
}
