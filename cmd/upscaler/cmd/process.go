package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/stages"
)

// stageSpec turns k=v pairs into the parameters of class. Values are read
// as YAML scalars so numbers and booleans keep their type.
func stageSpec(class string, params []string) (config.StageSpec, error) {
	values := map[string]any{}
	for _, p := range params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return config.StageSpec{}, fmt.Errorf("parameter %q is not key=value", p)
		}
		var val any
		if err := yaml.Unmarshal([]byte(v), &val); err != nil {
			return config.StageSpec{}, fmt.Errorf("parameter %s: %w", k, err)
		}
		values[k] = val
	}
	spec := config.StageSpec{Class: class}
	if err := spec.Params.Encode(values); err != nil {
		return config.StageSpec{}, err
	}
	return spec, nil
}

// NewProcessCmd runs one stage on one image
func NewProcessCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <Class>",
		Short: "run a single stage on an image",
		Long: "Instantiates one stage class with --param key=value pairs and runs it on --in. " +
			"Segments write --out, splitters write one file per outlet next to --out, sorters print the outlet.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			params, _ := cmd.Flags().GetStringArray("param")
			wip, _ := cmd.Flags().GetString("wip")
			if in == "" {
				return fmt.Errorf("--in is required")
			}

			spec, err := stageSpec(args[0], params)
			if err != nil {
				return err
			}
			if wip == "" {
				if wip, err = os.MkdirTemp("", "upscaler-"); err != nil {
					return err
				}
				defer os.RemoveAll(wip)
			}
			env := pipeline.NewContext(wip, 1, nil)
			stage, err := stages.Default().New(env, spec)
			if err != nil {
				return err
			}
			obj := pipeline.NewObject(in)

			switch s := stage.(type) {
			case pipeline.Sorter:
				outlet, err := s.Sort(ctx, obj)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), outlet)
				return nil
			case pipeline.Splitter:
				outs, err := s.Split(ctx, obj)
				if err != nil {
					return err
				}
				for _, o := range outs {
					dst := outletPath(out, in, o.Outlet)
					if err := save(o.Object, dst); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", o.Outlet, dst)
				}
				return nil
			case pipeline.Segment:
				outs, err := s.Process(ctx, obj)
				if err != nil {
					return err
				}
				if len(outs) == 0 {
					return fmt.Errorf("%s produced no image", args[0])
				}
				if out == "" {
					suffix := "out"
					if c := outs[0].Chain; len(c) > 0 {
						suffix = c[len(c)-1]
					}
					out = outletPath("", in, suffix)
				}
				if err := save(outs[0], out); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			return fmt.Errorf("%s cannot be run on a single image", args[0])
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "input image")
	pf.StringP("out", "o", "", "output image (default: next to the input)")
	pf.StringArrayP("param", "p", nil, "stage parameter as key=value (repeatable)")
	pf.String("wip", "", "work directory (default: a temporary directory)")
	return cmd
}

// outletPath names a result next to out, or next to in when out is empty.
func outletPath(out, in, suffix string) string {
	if out == "" {
		return utils.StripExtension(in) + "_" + suffix + ".png"
	}
	return utils.StripExtension(out) + "_" + suffix + filepath.Ext(out)
}

func save(obj *pipeline.Object, dst string) error {
	img, err := obj.Load()
	if err != nil {
		return err
	}
	return processing.NewProcessor().SaveImage(img, dst)
}
