package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/runner"
)

// Tool declares an external command. Args may use {input}, {output} and
// {outdir}. Timeout is in seconds (timeout: 30) or a duration string
// (timeout: 1m30s).
type Tool struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Env         []string `yaml:"env"`
	Timeout     Seconds  `yaml:"timeout"`
	AcceptCodes []int    `yaml:"accept_codes"`
	Fallback    string   `yaml:"fallback"`
}

// Seconds is a duration written as a number of seconds or as a Go
// duration string.
type Seconds time.Duration

func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	var secs float64
	if err := node.Decode(&secs); err == nil {
		*s = Seconds(secs * float64(time.Second))
		return nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*s = Seconds(d)
	return nil
}

func (t Tool) newRunner(env *pipeline.Context) (*runner.Runner, error) {
	if t.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if t.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	r := runner.New(t.Command, t.Args...)
	r.Env = t.Env
	r.Timeout = time.Duration(t.Timeout)
	r.AcceptCodes = t.AcceptCodes
	r.Logger = env.Logger
	switch t.Fallback {
	case "", "copy":
		r.Fallback = runner.CopyInput
	case "keep":
		r.Fallback = runner.KeepOutput
	default:
		return nil, fmt.Errorf("unknown fallback %q (use copy or keep)", t.Fallback)
	}
	return r, nil
}

// External runs a command line tool such as waifu2x, potrace, pngquant or
// texconv on each object.
type External struct {
	Tool   `yaml:",inline"`
	Suffix string `yaml:"suffix"`
	Ext    string `yaml:"ext"`

	env    *pipeline.Context
	runner *runner.Runner
}

func newExternal(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	e := &External{Ext: "png", env: env}
	if err := decode(spec, e); err != nil {
		return nil, err
	}
	r, err := e.Tool.newRunner(env)
	if err != nil {
		return nil, err
	}
	e.runner = r
	if e.Suffix == "" {
		e.Suffix = strings.TrimSuffix(filepath.Base(e.Command), filepath.Ext(e.Command))
	}
	e.Ext = strings.TrimPrefix(e.Ext, ".")
	return e, nil
}

func (e *External) Process(ctx context.Context, obj *pipeline.Object) ([]*pipeline.Object, error) {
	out, err := pipeline.TransformFile(ctx, e.env, obj, e.Suffix, e.Ext, func(ctx context.Context, in, out string) error {
		res, err := e.runner.Run(ctx, in, out)
		if err != nil {
			return err
		}
		if res.Fallback {
			e.env.Logger.InfoContext(ctx, "tool declined, input kept", "command", e.Command,
				"object", obj.String(), "code", res.ExitCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []*pipeline.Object{out}, nil
}
