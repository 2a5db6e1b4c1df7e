// Package upscaler runs texture upscaling pipelines.
//
// A pipeline is a YAML document naming stages and wiring their outlets to
// downstream stages. Images flow from the "source" stage through sorters,
// splitters and segments until a terminus writes or discards them:
//
//	stages:
//	  source:
//	    Directory: {path: ./textures}
//	    downstream: by_mode
//	  by_mode:
//	    ModeSorter: {}
//	    downstream: {color: up, gray: up}
//	  up:
//	    TiledScale: {factor: 2, size: 256, overlap: 16}
//	    downstream: out
//	  out:
//	    Output: {directory: ./upscaled}
//
// Basic usage:
//
//	u := upscaler.New()
//	sum, err := u.RunFile(ctx, "pipeline.yaml")
//
// For a single image without a pipeline, Upscale runs the tiled scaler
// directly.
package upscaler

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/analyzer"
	"github.com/menta2k/texture-upscaler/pkg/logging"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/stages"
	"github.com/menta2k/texture-upscaler/pkg/tile"
)

// Version of the upscaler library
const Version = "0.3.0"

// Upscaler builds and runs pipelines against a stage registry.
type Upscaler struct {
	registry  *pipeline.Registry
	analyzer  *analyzer.ImageAnalyzer
	logger    *slog.Logger
	logOutput io.Writer
}

// Option configures an Upscaler.
type Option func(*Upscaler)

// WithLogger sets the logger handed to every stage. Without it the log
// level follows the document's verbosity.
func WithLogger(l *slog.Logger) Option {
	return func(u *Upscaler) { u.logger = l }
}

// WithLogOutput sets where the verbosity-driven logger writes. The default
// is standard error. It has no effect together with WithLogger.
func WithLogOutput(w io.Writer) Option {
	return func(u *Upscaler) { u.logOutput = w }
}

// WithRegistry replaces the built-in stage classes.
func WithRegistry(r *pipeline.Registry) Option {
	return func(u *Upscaler) { u.registry = r }
}

// New creates an Upscaler with the built-in stage classes.
func New(opts ...Option) *Upscaler {
	u := &Upscaler{registry: stages.Default(), analyzer: analyzer.New(), logOutput: os.Stderr}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Classes lists the stage classes a document may use.
func (u *Upscaler) Classes() []string {
	return u.registry.Classes()
}

// Build parses a pipeline document and instantiates its graph.
func (u *Upscaler) Build(data []byte) (*pipeline.Graph, error) {
	doc, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	return u.build(doc)
}

func (u *Upscaler) build(doc *config.Config) (*pipeline.Graph, error) {
	logger := u.logger
	if logger == nil {
		logger = logging.Logger(u.logOutput, false, logging.VerbosityLevel(doc.Verbosity))
	}
	env := pipeline.NewContext(doc.WIPDirectory, doc.Verbosity, logger)
	return pipeline.Build(doc, u.registry, env)
}

// Run builds the document in data and drives every source item through it.
func (u *Upscaler) Run(ctx context.Context, data []byte) (*pipeline.Summary, error) {
	g, err := u.Build(data)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx)
}

// RunFile loads a pipeline document from path and runs it.
func (u *Upscaler) RunFile(ctx context.Context, path string) (*pipeline.Summary, error) {
	doc, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	g, err := u.build(doc)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx)
}

// TileOptions controls Upscale.
type TileOptions struct {
	Factor  float64
	Size    int
	Overlap int
	Method  string // catmullrom or a resample filter name
	Workers int
}

// DefaultTileOptions returns 2x CatmullRom scaling over 256px tiles with a
// 16px overlap.
func DefaultTileOptions() TileOptions {
	return TileOptions{Factor: 2, Size: 256, Overlap: 16, Method: "catmullrom"}
}

// Upscale scales img tile by tile and blends the seams.
func (u *Upscaler) Upscale(ctx context.Context, img image.Image, opts TileOptions) (*image.NRGBA, error) {
	res, _, err := u.UpscaleTiles(ctx, img, opts)
	return res, err
}

// UpscaleTiles is Upscale that also returns the tiling it used.
func (u *Upscaler) UpscaleTiles(ctx context.Context, img image.Image, opts TileOptions) (*image.NRGBA, *tile.SubdividedImage, error) {
	if opts.Factor <= 0 {
		return nil, nil, fmt.Errorf("factor must be positive")
	}
	if opts.Overlap < 1 {
		return nil, nil, fmt.Errorf("%w: overlap must be at least 1", tile.ErrInvalidGeometry)
	}
	if err := tile.CheckScale(opts.Size, opts.Factor); err != nil {
		return nil, nil, err
	}
	if err := u.analyzer.ValidateImage(img); err != nil {
		return nil, nil, err
	}

	var op tile.Operator
	switch method := strings.ToLower(opts.Method); method {
	case "", "catmullrom":
		op = func(_ context.Context, _ int, t image.Image) (image.Image, error) {
			return processing.ScaleCatmullRom(t, opts.Factor), nil
		}
	default:
		filter, err := processing.ParseFilter(method)
		if err != nil {
			return nil, nil, err
		}
		op = func(_ context.Context, _ int, t image.Image) (image.Image, error) {
			return processing.ScaleBy(t, opts.Factor, filter), nil
		}
	}
	return tile.Apply(ctx, img, tile.Options{Size: opts.Size, Overlap: opts.Overlap, Workers: opts.Workers}, op)
}

// GetImageInfo returns basic information about an image
func (u *Upscaler) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return u.analyzer.GetImageInfo(img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
