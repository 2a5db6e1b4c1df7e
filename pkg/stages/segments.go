package stages

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/runner"
)

// imageSegment runs an in-process image function behind the WIP cache.
type imageSegment struct {
	env    *pipeline.Context
	suffix string
	fn     pipeline.ImageFunc
}

func (s *imageSegment) Process(ctx context.Context, obj *pipeline.Object) ([]*pipeline.Object, error) {
	out, err := pipeline.Transform(ctx, s.env, obj, s.suffix, s.fn)
	if err != nil {
		return nil, err
	}
	return []*pipeline.Object{out}, nil
}

func pure(f func(image.Image) image.Image) pipeline.ImageFunc {
	return func(_ context.Context, img image.Image) (image.Image, error) {
		return f(img), nil
	}
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Resize scales by Factor, or to Width x Height when Factor is zero. A zero
// Width or Height keeps the aspect ratio.
type Resize struct {
	Factor float64 `yaml:"factor"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Filter string  `yaml:"filter"`
}

func newResize(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	p := Resize{}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	filter, err := processing.ParseFilter(p.Filter)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Factor < 0 || p.Width < 0 || p.Height < 0:
		return nil, fmt.Errorf("resize dimensions must not be negative")
	case p.Factor > 0:
		return &imageSegment{env: env, suffix: "x" + formatFactor(p.Factor), fn: pure(func(img image.Image) image.Image {
			return processing.ScaleBy(img, p.Factor, filter)
		})}, nil
	case p.Width > 0 || p.Height > 0:
		return &imageSegment{env: env, suffix: fmt.Sprintf("%dx%d", p.Width, p.Height), fn: pure(func(img image.Image) image.Image {
			return processing.Resize(img, p.Width, p.Height, filter)
		})}, nil
	}
	return nil, fmt.Errorf("resize needs factor or width/height")
}

// Crop cuts a rectangle relative to the image origin.
type Crop struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
}

func newCrop(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	p := Crop{}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	rect := image.Rect(p.Left, p.Top, p.Right, p.Bottom)
	if p.Left < 0 || p.Top < 0 || rect.Empty() || rect.Min.X != p.Left || rect.Min.Y != p.Top {
		return nil, fmt.Errorf("invalid crop rectangle %d,%d,%d,%d", p.Left, p.Top, p.Right, p.Bottom)
	}
	suffix := fmt.Sprintf("crop%d-%d-%d-%d", p.Left, p.Top, p.Right, p.Bottom)
	return &imageSegment{env: env, suffix: suffix, fn: func(_ context.Context, img image.Image) (image.Image, error) {
		return processing.Crop(img, rect)
	}}, nil
}

// Mode converts to gray, rgb (opaque) or rgba.
type Mode struct {
	Mode string `yaml:"mode"`
}

func newMode(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	p := Mode{}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	var fn func(image.Image) image.Image
	switch p.Mode {
	case "gray", "L":
		fn = func(img image.Image) image.Image { return processing.Grayscale(img) }
	case "rgb", "RGB":
		fn = func(img image.Image) image.Image { return processing.Opaque(img) }
	case "rgba", "RGBA":
		fn = func(img image.Image) image.Image { return imaging.Clone(img) }
	default:
		return nil, fmt.Errorf("unknown mode %q (use gray, rgb or rgba)", p.Mode)
	}
	return &imageSegment{env: env, suffix: "mode-" + p.Mode, fn: pure(fn)}, nil
}

// Threshold maps pixels to black or white at Level percent.
type Threshold struct {
	Level float32 `yaml:"level"`
}

func newThreshold(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	p := Threshold{Level: 50}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	if p.Level < 0 || p.Level > 100 {
		return nil, fmt.Errorf("threshold level must be within 0..100")
	}
	return &imageSegment{env: env, suffix: "thr" + formatFactor(float64(p.Level)), fn: pure(func(img image.Image) image.Image {
		return processing.Threshold(img, p.Level)
	})}, nil
}

// Sharpen applies an unsharp mask.
type Sharpen struct {
	Sigma     float32 `yaml:"sigma"`
	Amount    float32 `yaml:"amount"`
	Threshold float32 `yaml:"threshold"`
}

func newSharpen(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	p := Sharpen{Sigma: 1, Amount: 1}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	if p.Sigma <= 0 {
		return nil, fmt.Errorf("sigma must be positive")
	}
	suffix := fmt.Sprintf("sharp%s-%s", formatFactor(float64(p.Sigma)), formatFactor(float64(p.Amount)))
	return &imageSegment{env: env, suffix: suffix, fn: pure(func(img image.Image) image.Image {
		return processing.Sharpen(img, p.Sigma, p.Amount, p.Threshold)
	})}, nil
}

// Quantize reduces the palette in process.
type Quantize struct {
	Colors int     `yaml:"colors"`
	Speed  int     `yaml:"speed"`
	Dither float64 `yaml:"dither"`
}

func newQuantize(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	d := processing.DefaultQuantizeOptions()
	p := Quantize{Colors: d.Colors, Speed: d.Speed, Dither: d.Dither}
	if err := decode(spec, &p); err != nil {
		return nil, err
	}
	if p.Colors < 2 || p.Colors > 256 {
		return nil, fmt.Errorf("colors must be within 2..256")
	}
	opts := processing.QuantizeOptions{Colors: p.Colors, Speed: p.Speed, Dither: p.Dither}
	return &imageSegment{env: env, suffix: fmt.Sprintf("q%d", p.Colors), fn: func(_ context.Context, img image.Image) (image.Image, error) {
		return processing.Quantize(img, opts)
	}}, nil
}

// Backup copies each original into the WIP directory and passes the
// object on unchanged.
type Backup struct {
	Directory string `yaml:"directory"`

	env *pipeline.Context
}

func newBackup(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	b := &Backup{Directory: "originals", env: env}
	if err := decode(spec, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backup) Process(ctx context.Context, obj *pipeline.Object) ([]*pipeline.Object, error) {
	dir := b.Directory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(b.env.WIPDir, dir)
	}
	ext := "png"
	if obj.Path != "" {
		ext = utils.GetFileExtension(obj.Path)
	}
	dst := filepath.Join(dir, filepath.FromSlash(obj.Name())+"."+ext)
	if utils.FileExists(dst) {
		return []*pipeline.Object{obj}, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	if obj.Path != "" {
		if err := runner.CopyFile(obj.Path, dst); err != nil {
			return nil, fmt.Errorf("backup failed: %w", err)
		}
	} else if err := processing.NewProcessor().SaveImage(obj.Image, dst); err != nil {
		return nil, fmt.Errorf("backup failed: %w", err)
	}
	b.env.Logger.DebugContext(ctx, "backed up", "object", obj.String(), "path", dst)
	return []*pipeline.Object{obj}, nil
}
